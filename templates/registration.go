package templates

var RegistrationSubject = `Your registration for %s is approved`

// HtmlRegistrationTemplate takes the auction title and the paddle number
var HtmlRegistrationTemplate = `
	<p class="heading"><strong>You are registered to bid in %s.</strong></p>
	<p class="subheading">Your paddle number is %d.</p>
`
var PlainRegistrationTemplate = `You are registered to bid in %s. Your paddle number is %d.`
