package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/pack/mof"
	"github.com/mogaika/mof_browser/utils"
	"github.com/mogaika/mof_browser/vfs"
)

func (s *Server) HandlerAjaxModels(w http.ResponseWriter, r *http.Request) {
	if files, err := s.Directory.List(); err != nil {
		WriteError(w, err)
	} else {
		sort.Strings(files)
		WriteJson(w, files)
	}
}

func (s *Server) HandlerAjaxModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	m, _, err := s.LoadModel(file, nil)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJson(w, m.Ajax())
}

type AjaxLayoutSection struct {
	Name  string
	Start int
	End   int
}

func (s *Server) HandlerAjaxModelLayout(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	m, _, err := s.LoadModel(file, nil)
	if err != nil {
		WriteError(w, err)
		return
	}
	if m.IsIncomplete() {
		m = m.Counterpart()
	}
	layouts, err := m.Layout(s.Options(nil))
	if err != nil {
		WriteError(w, err)
		return
	}

	result := make([][]AjaxLayoutSection, len(layouts))
	for i, layout := range layouts {
		result[i] = make([]AjaxLayoutSection, 0, len(layout))
		for section, span := range layout {
			if span.Present {
				result[i] = append(result[i], AjaxLayoutSection{Name: mof.SectionName(section), Start: span.Start, End: span.End})
			}
		}
	}
	WriteJson(w, result)
}

func (s *Server) HandlerDumpModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	var trace bytes.Buffer
	m, _, err := s.LoadModel(file, utils.NewLogger(&trace))
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, utils.SDumpShallow(m))
	WriteResult(w, trace.Bytes())
}

func (s *Server) HandlerRawModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	f, err := vfs.DirectoryGetFile(s.Directory, file)
	if err != nil {
		WriteError(w, err)
		return
	}
	reader, err := vfs.OpenFileAndGetReader(f, true)
	if err != nil {
		WriteError(w, err)
		return
	}
	defer f.Close()
	WriteFile(w, reader, file)
}

func (s *Server) HandlerDownloadModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	m, _, err := s.LoadModel(file, nil)
	if err != nil {
		WriteError(w, err)
		return
	}
	data, err := m.Marshal(s.Options(nil))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteFile(w, bytes.NewReader(data), file)
}

type VerifyResult struct {
	File            string
	Incomplete      bool
	Size            int
	ReencodedSize   int
	Equal           bool
	FirstDifference int
	Trace           string `json:",omitempty"`
}

func firstDifference(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return len(a)
		}
		return len(b)
	}
	return -1
}

// Verify decodes and re-encodes a model file and compares the bytes.
func (s *Server) Verify(file string, trace bool) (*VerifyResult, error) {
	var buf bytes.Buffer
	var l *utils.Logger
	if trace {
		l = utils.NewLogger(&buf)
	}

	m, data, err := s.LoadModel(file, l)
	if err != nil {
		return nil, err
	}
	reencoded, err := m.Marshal(s.Options(l))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to re-encode '%s'", file)
	}

	res := &VerifyResult{
		File:            file,
		Incomplete:      m.IsIncomplete(),
		Size:            len(data),
		ReencodedSize:   len(reencoded),
		FirstDifference: firstDifference(data, reencoded),
		Trace:           buf.String(),
	}
	res.Equal = res.FirstDifference < 0
	return res, nil
}

func (s *Server) HandlerActionVerify(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	res, err := s.Verify(file, r.URL.Query().Get("trace") != "")
	if err != nil {
		s.notifyError("Verify %s: %v", file, err)
		WriteError(w, err)
		return
	}
	if res.Equal {
		s.notify("Verified %s: %d bytes round-trip", file, res.Size)
	} else {
		s.notifyError("Verify %s: re-encoded data differs at 0x%x", file, res.FirstDifference)
	}
	WriteJson(w, res)
}

func (s *Server) HandlerUploadModel(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	fileStream, _, err := r.FormFile("data")
	if err != nil {
		WriteError(w, errors.Wrapf(err, "File stream getting error"))
		return
	}
	defer fileStream.Close()

	data, err := io.ReadAll(fileStream)
	if err != nil {
		WriteError(w, errors.Wrapf(err, "Reading file error"))
		return
	}

	opts := s.Options(nil)
	if cpName, ok := s.game().Counterpart(file); ok {
		cp, _, err := s.LoadModel(cpName, nil)
		if err != nil {
			WriteError(w, err)
			return
		}
		opts.Counterpart = cp
	}
	if _, err := mof.NewFromData(data, opts); err != nil {
		WriteError(w, errors.Wrapf(err, "Uploaded '%s' is not a valid model", file))
		return
	}

	if err := vfs.WriteFile(s.Directory, file, data); err != nil {
		WriteError(w, errors.Wrapf(err, "Error when updating model file"))
		return
	}
	s.notify("Uploaded %s (%d bytes)", file, len(data))
	WriteJson(w, map[string]interface{}{"File": file, "Size": len(data)})
}
