package archive

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// checkPDF runs a structural validation on an archived PDF. Dynamic
// attachment endpoints occasionally serve truncated or mislabeled
// bytes; flagging them at archive time beats discovering it in a
// viewer later. Failures are diagnostic only.
func (w *Writer) checkPDF(path string) {
	if err := api.ValidateFile(path, nil); err != nil {
		w.log.Warn("archive: pdf failed validation", "path", path, "error", err)
		return
	}
	w.log.Debug("archive: pdf validated", "path", path)
}
