package console

import "fmt"

// View is the per-panel render target. Each panel owns exactly one region
// and every render replaces that region's content wholesale.
type View struct {
	region string
}

func NewView(region string) View { return View{region: region} }

func (v View) Region() string { return v.region }

// Render wraps a fragment for the panel's region.
func (v View) Render(inner string) string {
	return fmt.Sprintf(`<div id="%s" class="panel-content">%s</div>`, esc(v.region), inner)
}

// RenderError shows a failure in the panel's region as "Error: <message>".
func (v View) RenderError(msg string) string {
	return fmt.Sprintf(`<div id="%s" class="panel-content"><p class="error">Error: %s</p></div>`,
		esc(v.region), esc(msg))
}

// RenderNote shows an informational line, for states that are neither data
// nor failure.
func (v View) RenderNote(msg string) string {
	return fmt.Sprintf(`<div id="%s" class="panel-content"><p class="note">%s</p></div>`,
		esc(v.region), esc(msg))
}
