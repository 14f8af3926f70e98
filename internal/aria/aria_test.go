package aria

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_AssignsSequentialRefsAndRoles(t *testing.T) {
	e := New()
	html := `<html><body>
		<a href="/home">Home</a>
		<button>Submit</button>
		<input type="text" placeholder="Search">
	</body></html>`

	snapshot, refs, err := e.Snapshot(html)
	require.NoError(t, err)

	lines := strings.Split(snapshot, "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], `link "Home" [ref=e1]`)
	require.Contains(t, lines[1], `button "Submit" [ref=e2]`)
	require.Contains(t, lines[2], `textbox "Search" [ref=e3]`)

	require.Len(t, refs, 3)
	require.Contains(t, refs, "e1")
	require.Contains(t, refs, "e2")
	require.Contains(t, refs, "e3")
}

func TestSnapshot_NoInteractableElements(t *testing.T) {
	e := New()
	snapshot, refs, err := e.Snapshot(`<html><body><p>Nothing clickable here</p></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "(no interactable elements found)", snapshot)
	require.Empty(t, refs)
}

func TestSnapshot_DisabledMarker(t *testing.T) {
	e := New()
	snapshot, _, err := e.Snapshot(`<html><body><button disabled>Go</button></body></html>`)
	require.NoError(t, err)
	require.Contains(t, snapshot, "(disabled)")
}

func TestSnapshot_AccessibleNameFallbackChain(t *testing.T) {
	e := New()
	snapshot, _, err := e.Snapshot(`<html><body>
		<input type="text" aria-label="Username">
		<input type="text" placeholder="Email">
		<img src="x.png" alt="logo">
	</body></html>`)
	require.NoError(t, err)

	lines := strings.Split(snapshot, "\n")
	require.Contains(t, lines[0], `"Username"`)
	require.Contains(t, lines[1], `"Email"`)
}

func TestSnapshot_InputRoleMapping(t *testing.T) {
	e := New()
	snapshot, _, err := e.Snapshot(`<html><body>
		<input type="checkbox" aria-label="Agree">
		<input type="submit" value="Go">
	</body></html>`)
	require.NoError(t, err)

	lines := strings.Split(snapshot, "\n")
	require.Contains(t, lines[0], "checkbox")
	require.Contains(t, lines[1], "button")
}

func TestSnapshot_RoleAttributeOverridesTag(t *testing.T) {
	e := New()
	snapshot, _, err := e.Snapshot(`<html><body><div role="tab" aria-label="First">first</div></body></html>`)
	require.NoError(t, err)
	require.Contains(t, snapshot, `tab "First"`)
}

func TestSnapshot_RefSelectorsResolveDistinctSiblings(t *testing.T) {
	e := New()
	html := `<html><body>
		<button>One</button>
		<button>Two</button>
		<button>Three</button>
	</body></html>`

	_, refs, err := e.Snapshot(html)
	require.NoError(t, err)

	require.Len(t, refs, 3)
	selectors := map[string]bool{}
	for _, sel := range refs {
		require.False(t, selectors[sel], "selector %q should be unique per ref", sel)
		selectors[sel] = true
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	require.Equal(t, "hello world", normalize("  hello\n  world  "))
}
