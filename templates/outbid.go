package templates

var OutbidSubject = `You have been outbid on lot %d`

// HtmlOutbidTemplate takes the lot number, the new amount and the next minimum bid
var HtmlOutbidTemplate = `
	<p class="heading"><strong>You have been outbid on lot %d.</strong></p>
	<p class="subheading">The bid now stands at %s. Bid %s or more to take the lead again.</p>
`
var PlainOutbidTemplate = `You have been outbid on lot %d. The bid now stands at %s. Bid %s or more to take the lead again.`
