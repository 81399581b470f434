package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestHTMLToMarkdown(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	html := `<html><head><style>body{}</style><script>track()</script></head>
<body>
<nav><a href="/">Home</a> | <a href="/investors">Investors</a></nav>
<article>
<h1>ACME Reports Second Quarter Results</h1>
<p>Revenue was <strong>$1.2 billion</strong>, up 12%.</p>
<p><a href="/files/q2.pdf">Download PDF</a></p>
</article>
<footer>Copyright ACME</footer>
</body></html>`

	out, err := svc.HTMLToMarkdown(html, "https://acme.example")
	require.NoError(t, err)
	assert.Contains(t, out, "# ACME Reports Second Quarter Results")
	assert.Contains(t, out, "**$1.2 billion**")
	assert.Contains(t, out, "https://acme.example/files/q2.pdf")
	assert.NotContains(t, out, "Investors")
	assert.NotContains(t, out, "track()")
	assert.NotContains(t, out, "Copyright")
}

func TestHTMLToMarkdownEmpty(t *testing.T) {
	out, err := NewService(arbor.NewLogger()).HTMLToMarkdown("  ", "")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "Q2 & Q3 results", stripHTMLTags("<p>Q2 &amp; Q3</p>\n<b>results</b>"))
}

func TestValidateHTML(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.NoError(t, svc.ValidateHTML("<p>ok</p>"))
	assert.Error(t, svc.ValidateHTML(""))
	assert.Error(t, svc.ValidateHTML("plain text"))
}
