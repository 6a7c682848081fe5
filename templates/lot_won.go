package templates

var LotWonSubject = `Congratulations! You won lot %d`

// HtmlLotWonTemplate takes the lot number, hammer price, premium and total
var HtmlLotWonTemplate = `
	<p class="heading"><strong>You won lot %d with a hammer price of %s.</strong></p>
	<p class="subheading">Buyer's premium: %s. Total due: %s. Your invoice will follow shortly.</p>
`
var PlainLotWonTemplate = `You won lot %d with a hammer price of %s. Buyer's premium: %s. Total due: %s.`

// SmsLotWonTemplate takes the lot number and the total due
var SmsLotWonTemplate = `Auction House: you won lot %d. Total due %s.`
