package web

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/config"
	"github.com/mogaika/mof_browser/pack/mof"
	"github.com/mogaika/mof_browser/status"
	"github.com/mogaika/mof_browser/utils"
	"github.com/mogaika/mof_browser/vfs"
)

var _ mof.Capabilities = (*config.Game)(nil)

type Server struct {
	Directory vfs.Directory
	// nil means config.GetGame()
	Game   *config.Game
	Status *status.Hub
}

func NewServer(d vfs.Directory, g *config.Game, hub *status.Hub) *Server {
	return &Server{Directory: d, Game: g, Status: hub}
}

func (s *Server) game() *config.Game {
	if s.Game != nil {
		return s.Game
	}
	return config.GetGame()
}

func (s *Server) notify(format string, a ...interface{}) {
	if s.Status != nil {
		s.Status.Info(format, a...)
	}
}

func (s *Server) notifyError(format string, a ...interface{}) {
	if s.Status != nil {
		s.Status.Error(format, a...)
	}
}

func (s *Server) Options(l *utils.Logger) *mof.Options {
	g := s.game()
	opts := &mof.Options{Caps: g, Log: l}
	if len(g.Textures.Images) != 0 {
		opts.Textures = mof.NewTextureTable(g.Textures.Remap, g.Textures.Images)
	}
	return opts
}

// LoadModel decodes a model file. Incomplete models get the counterpart
// named by the game config loaded first.
func (s *Server) LoadModel(name string, l *utils.Logger) (*mof.StaticModel, []byte, error) {
	data, err := vfs.ReadFile(s.Directory, name)
	if err != nil {
		return nil, nil, err
	}

	opts := s.Options(l)
	if cpName, ok := s.game().Counterpart(name); ok {
		if _, chained := s.game().Counterpart(cpName); chained {
			return nil, nil, errors.Errorf("Counterpart '%s' of '%s' is itself incomplete", cpName, name)
		}
		cp, _, err := s.LoadModel(cpName, nil)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Failed to load counterpart of '%s'", name)
		}
		opts.Counterpart = cp
	}

	m, err := mof.NewFromData(data, opts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Failed to load '%s'", name)
	}
	return m, data, nil
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/json/models", s.HandlerAjaxModels)
	r.HandleFunc("/json/model/{file}", s.HandlerAjaxModel)
	r.HandleFunc("/json/model/{file}/layout", s.HandlerAjaxModelLayout)
	r.HandleFunc("/dump/model/{file}", s.HandlerDumpModel)
	r.HandleFunc("/raw/model/{file}", s.HandlerRawModel)
	r.HandleFunc("/download/model/{file}", s.HandlerDownloadModel)
	r.HandleFunc("/action/model/{file}/verify", s.HandlerActionVerify)
	r.HandleFunc("/upload/model/{file}", s.HandlerUploadModel).Methods("POST")
	if s.Status != nil {
		r.HandleFunc("/ws/status", s.Status.HandlerWebsocket)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
}

func StartServer(addr string, s *Server) error {
	h := handlers.LoggingHandler(os.Stdout, s.Router())

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
