package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/binzume/mafiaconv/converter"
)

func loadConfig(path string) (*converter.Config, error) {
	if path == "" {
		return &converter.Config{}, nil
	}
	log.Print("config: ", path)
	return converter.LoadConfig(path)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] input.4ds [anim.5ds ...] [output.glb]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [flags] inputdir [outputdir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	dumpOnly := flag.Bool("dump", false, "print the decoded file as YAML")
	useSpew := flag.Bool("spew", false, "print the decoded file with spew (implies -dump)")
	workers := flag.Int("j", 0, "parallel conversions for directory input (0: number of CPUs)")
	dataPath := flag.String("datapath", "", "game data directory (textures are read from <datapath>/maps)")
	confFile := flag.String("config", "", "config file (default: <input>.mafiaconv.yaml if present)")
	scale := flag.Float64("scale", 1, "scale")
	fps := flag.Float64("fps", 25, "animation frame rate")
	lods := flag.Bool("lods", false, "export all LODs")
	forceUnlit := flag.Bool("unlit", false, "unlit all materials")
	skipAlpha := flag.Bool("skipalpha", false, "don't read alpha texture names of add-effect materials")
	charset := flag.String("charset", "", "string encoding (default: ISO 8859-2)")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return
	}
	input := flag.Arg(0)

	if *confFile == "" {
		if _, err := os.Stat(defaultConfigFile(input)); err == nil {
			*confFile = defaultConfigFile(input)
		}
	}
	conf, err := loadConfig(*confFile)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "j":
			conf.Workers = *workers
		case "datapath":
			conf.DataPath = *dataPath
		case "scale":
			conf.Scale = float32(*scale)
		case "fps":
			conf.FPS = float32(*fps)
		case "lods":
			conf.ExportLODs = *lods
		case "unlit":
			conf.ForceUnlit = *forceUnlit
		case "skipalpha":
			conf.SkipAlphaRemainder = *skipAlpha
		case "charset":
			conf.Charset = *charset
		}
	})
	conf.Resolve()

	if st, err := os.Stat(input); err == nil && st.IsDir() {
		output := input
		if flag.NArg() > 1 {
			output = flag.Arg(1)
		}
		jobs, err := converter.CollectJobs(input, output, ".glb")
		if err != nil {
			log.Fatal(err)
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		log.Printf("%d files, %d workers", len(jobs), conf.Workers)
		if printResults(converter.RunBatch(ctx, jobs, conf)) > 0 {
			os.Exit(1)
		}
		return
	}

	inputExt := strings.ToLower(filepath.Ext(input))
	if *dumpOnly || *useSpew || inputExt == ".5ds" {
		v, err := loadFile(input, conf)
		if err != nil {
			log.Fatal(err)
		}
		if err := dump(os.Stdout, v, *useSpew); err != nil {
			log.Fatal(err)
		}
		return
	}

	job := &converter.Job{Input: input}
	for _, f := range flag.Args()[1:] {
		if strings.ToLower(filepath.Ext(f)) == ".5ds" {
			job.Animations = append(job.Animations, f)
		} else {
			job.Output = f
		}
	}
	if job.Output == "" {
		job.Output = defaultOutputFile(input)
	}

	log.Print("out: ", job.Output)
	res := converter.ConvertFile(job, conf)
	if printResults([]*converter.Result{res}) > 0 {
		os.Exit(1)
	}
}
