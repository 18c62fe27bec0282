package vhssh

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/upload"
)

// UploadAdmin is the part of the upload service the console drives.
type UploadAdmin interface {
	ListAll() []upload.Record
	Stats() upload.Stats
	Cancel(uploadID string) (bool, error)
}

// Console runs a single admin command and writes its output.
type Console struct {
	uploads UploadAdmin
}

func NewConsole(uploads UploadAdmin) *Console {
	return &Console{uploads: uploads}
}

const usage = `Commands:
  uploads             list tracked uploads
  stats               count uploads by status
  cancel <uploadId>   cancel a running upload
`

// Run executes args and returns the exit status.
func (c *Console) Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = io.WriteString(stdout, usage)
		return 0
	}

	switch args[0] {
	case "uploads":
		c.listUploads(stdout)
		return 0

	case "stats":
		s := c.uploads.Stats()
		_, _ = fmt.Fprintf(stdout, "total=%d uploading=%d processing=%d completed=%d error=%d cancelled=%d\n",
			s.Total, s.Uploading, s.Processing, s.Completed, s.Error, s.Cancelled)
		return 0

	case "cancel":
		if len(args) != 2 {
			_, _ = fmt.Fprintln(stderr, "usage: cancel <uploadId>")
			return 2
		}

		applied, err := c.uploads.Cancel(args[1])
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(stderr, "%s\n", err)
			return 1
		case !applied:
			_, _ = fmt.Fprintf(stdout, "upload %s already finished\n", args[1])
		default:
			_, _ = fmt.Fprintf(stdout, "upload %s cancelled\n", args[1])
		}
		return 0

	case "help":
		_, _ = io.WriteString(stdout, usage)
		return 0

	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s", strings.Join(args, " "), usage)
		return 2
	}
}

func (c *Console) listUploads(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "UPLOAD ID\tSTATUS\tSTAGE\tPROGRESS\tBYTES\tSTARTED")
	for _, r := range c.uploads.ListAll() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%d/%d\t%s\n",
			r.UploadID, r.Status, r.Stage, r.Progress, r.BytesUploaded, r.TotalBytes, r.StartTime.Format(time.RFC3339))
	}
	_ = tw.Flush()
}
