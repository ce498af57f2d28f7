package converter

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/binzume/mafiaconv/gltfutil"
	"github.com/binzume/mafiaconv/mafia"
	"github.com/pkg/errors"
)

// Job converts one model and its animations into a single glTF file.
type Job struct {
	Input      string
	Animations []string
	Output     string
}

type Result struct {
	Job      *Job
	Warnings []*mafia.Warning
	Err      error
}

// ConvertFile runs one job. A model cut short by an unsupported node is still
// written; the error is reported as a warning.
func ConvertFile(job *Job, conf *Config) *Result {
	res := &Result{Job: job}
	opts, err := conf.DecoderOptions()
	if err != nil {
		res.Err = err
		return res
	}

	model, err := mafia.ParseModelFile(job.Input, opts)
	if model != nil {
		res.Warnings = model.Warnings
	}
	if err != nil && !(model != nil && errors.Is(err, mafia.ErrUnsupportedNodeType)) {
		res.Err = err
		return res
	}
	if err != nil {
		log.Print("WARN: ", err)
	}

	doc, err := NewFourDSToGLTFConverter(conf.ConverterOptions()).Convert(model)
	if err != nil {
		res.Err = errors.Wrap(err, job.Input)
		return res
	}

	for _, path := range job.Animations {
		anim, err := mafia.ParseAnimationFile(path, opts)
		if err != nil {
			res.Err = err
			return res
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, err := AddAnimationToGLTF(doc, anim, conf.AnimationOptions(name)); err != nil {
			log.Print("WARN: ", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		res.Err = err
		return res
	}
	res.Err = gltfutil.Save(doc, job.Output)
	return res
}

// RunBatch converts jobs with conf.Workers goroutines. Jobs not started
// before ctx is done fail with ctx.Err().
func RunBatch(ctx context.Context, jobs []*Job, conf *Config) []*Result {
	total := len(jobs)
	results := make([]*Result, total)
	var processed atomic.Int64

	workers := conf.Workers
	if workers <= 0 {
		workers = 1
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					log.Printf("[%d/%d] %.1f files/sec", p, total, float64(p)/time.Since(start).Seconds())
				}
			}
		}
	}()

	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx] = &Result{Job: jobs[idx], Err: err}
				} else {
					results[idx] = ConvertFile(jobs[idx], conf)
				}
				processed.Add(1)
			}
		}()
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)
	return results
}

// CollectJobs finds every .4ds file under root. Outputs mirror the directory
// tree under outDir with the extension replaced by ext.
func CollectJobs(root, outDir, ext string) ([]*Job, error) {
	var jobs []*Job
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".4ds" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, &Job{
			Input:  path,
			Output: filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+ext),
		})
		return nil
	})
	return jobs, err
}
