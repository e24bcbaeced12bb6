package render

import "strings"

// Markdown renders markdown content for terminal display.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// Partial renders a reply that is still streaming. An unterminated code
// fence is closed first so the half-written block renders as code instead
// of swallowing the layout.
func Partial(content string, opts Options) (string, error) {
	return Markdown(CloseOpenFence(content), opts)
}

// CloseOpenFence appends a closing fence when content has an odd number of
// ``` fence lines.
func CloseOpenFence(content string) string {
	open := false
	for line := range strings.Lines(content) {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			open = !open
		}
	}
	if !open {
		return content
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "```\n"
}
