package accelade

import (
	"context"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/accelade/lib/extension"
)

// Flash levels for toast notifications.
const (
	FlashSuccess = extension.FlashSuccess
	FlashError   = extension.FlashError
	FlashWarning = extension.FlashWarning
	FlashInfo    = extension.FlashInfo
)

// Flash represents a one-time notification message.
//
// Flashes reach components through Config.Flash; a root opting into the
// flash extension sees them under the flash state key:
//
//	rt, _ := accelade.New(doc, accelade.WithFlash(accelade.FlashData(
//	    accelade.Flash{Level: accelade.FlashSuccess, Message: "Saved"},
//	)))
type Flash struct {
	Level   string // success, error, warning, info
	Message string
}

// FlashData converts flashes to the page flash map. A later flash replaces
// an earlier one of the same level.
func FlashData(flashes ...Flash) map[string]any {
	if len(flashes) == 0 {
		return nil
	}
	data := make(map[string]any, len(flashes))
	for _, f := range flashes {
		data[f.Level] = f.Message
	}
	return data
}

// FlashContainerID is the id of the root rendered by ToastContainer.
const FlashContainerID = "toasts"

// ToastContainer returns a flash component root with one toast per level.
//
// Add it to your layout (typically near the end of <body>):
//
//	@accelade.ToastContainer()
//
// Each toast is shown while its level has a message and dismissed with
// clearFlash.
func ToastContainer() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<div id="` + FlashContainerID + `" class="toast-container" ` +
			AttrRoot + ` ` + extension.MarkerPrefix + `flash>`)
		for _, level := range extension.FlashLevels {
			lvl := html.EscapeString(level)
			sb.WriteString(`<div id="toast-` + lvl + `" class="toast toast-` + lvl + `"`)
			sb.WriteString(` a-show="` + extension.FlashKey + `.` + lvl + `"`)
			sb.WriteString(` a-on:click="clearFlash('` + lvl + `')"`)
			sb.WriteString(` a-text="` + extension.FlashKey + `.` + lvl + `"></div>`)
		}
		sb.WriteString(`</div>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
