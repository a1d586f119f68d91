package components

import "fmt"

// OutputData is used by the output link component to show and download the
// latest snapshot.
type OutputData struct {
	Snapshot string
	Size     int
	// Refresh is the htmx polling trigger, e.g. "every 1s".
	Refresh string
	Class   string
}

// FormData carries what the form inputs need to render.
type FormData struct {
	URL     string
	IconURL string
	Accept  string
}

func backgroundStyle(d OutputData) string {
	return fmt.Sprintf("width:%dpx;height:%dpx;background-image:url('%s');", d.Size, d.Size, d.Snapshot)
}
