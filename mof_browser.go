package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/mogaika/mof_browser/config"
	"github.com/mogaika/mof_browser/status"
	"github.com/mogaika/mof_browser/vfs"
	"github.com/mogaika/mof_browser/web"
)

func main() {
	var addr, dir, gameConfig, verify string
	var trace bool
	flag.StringVar(&addr, "i", ":8000", "Address of server")
	flag.StringVar(&dir, "dir", "", "Path to folder with model files")
	flag.StringVar(&gameConfig, "config", "", "Path to game yaml config")
	flag.StringVar(&verify, "verify", "", "Round-trip one model file from -dir and exit")
	flag.BoolVar(&trace, "trace", false, "Print parse trace for -verify")
	flag.Parse()

	if dir == "" {
		flag.PrintDefaults()
		return
	}

	if gameConfig != "" {
		g, err := config.LoadGame(gameConfig)
		if err != nil {
			log.Fatal(err)
		}
		config.SetGame(g)
		log.Printf("[config] Using game %q build %d", g.Name, g.Build)
	}

	s := web.NewServer(vfs.NewDirectoryDriver(dir), nil, status.DefaultHub)

	if verify != "" {
		res, err := s.Verify(verify, trace)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(res)
		if !res.Equal {
			os.Exit(1)
		}
		return
	}

	if err := web.StartServer(addr, s); err != nil {
		log.Fatal(err)
	}
}
