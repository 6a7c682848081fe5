package templates

// HtmlEmailLayout wraps the body of every notification mail. The single %s
// is replaced with the body.
var HtmlEmailLayout = `
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
<style>
.content{
	margin:10%%;
}
.heading{
	color:#555555;
}
.subheading{
	color:#9e9e9e;
}
</style>
</head>
<body>
<div class="content">
	<h2>Auction House</h2>
	%s
</div>
</body>
</html>
`
