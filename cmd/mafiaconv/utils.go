package main

import (
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/binzume/mafiaconv/converter"
	"github.com/binzume/mafiaconv/mafia"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
}

func dump(w io.Writer, v interface{}, useSpew bool) error {
	if useSpew {
		spewConfig.Fdump(w, v)
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// loadFile decodes a .4ds or .5ds file.
func loadFile(input string, conf *converter.Config) (interface{}, error) {
	opts, err := conf.DecoderOptions()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".4ds":
		model, err := mafia.ParseModelFile(input, opts)
		if err != nil && model != nil && errors.Is(err, mafia.ErrUnsupportedNodeType) {
			log.Print("WARN: ", err)
			return model, nil
		}
		return model, err
	case ".5ds":
		return mafia.ParseAnimationFile(input, opts)
	}
	return nil, errors.Errorf("Unsupported input type: %v", input)
}

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return input[0:len(input)-len(ext)] + ".glb"
}

func defaultConfigFile(input string) string {
	return input[0:len(input)-len(filepath.Ext(input))] + ".mafiaconv.yaml"
}

func printResults(results []*converter.Result) int {
	failed := 0
	for _, r := range results {
		for _, w := range r.Warnings {
			log.Printf("WARN: %s: %v", r.Job.Input, w)
		}
		if r.Err != nil {
			failed++
			log.Printf("ERROR: %v", r.Err)
		}
	}
	log.Printf("%d files, %d failed", len(results), failed)
	return failed
}
