package uitest

// CSS selectors for the elements the UI tests interact with.
const (
	SelectorCSRF     = `input[name="_csrf"]`
	SelectorName     = `input[name="name"]`
	SelectorPassword = `input[name="password"]`
	SelectorCode     = `input[name="code"]`
	SelectorCaptcha  = `input[name="captcha"]`
	SelectorSubmit   = `button[type="submit"]`

	SelectorQuestion = "#captcha-question"
	SelectorError    = ".error"
	SelectorWhoami   = ".whoami"

	SelectorSecret = "#secret"
	SelectorQRCode = "#qr-code"

	SelectorAccountNames = "#accounts .name"
	SelectorItemRows     = "#items tbody tr"
	SelectorNextPage     = "#next-page"
	SelectorObsolete     = "#obsolete"

	SelectorObsoleteLink = `nav a[href="/obsolete"]`
	SelectorLogoutLink   = `nav a[href="/logout"]`
)
