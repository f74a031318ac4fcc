package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	// Packages
	collect "github.com/mutablelogic/go-collect"
	quota "github.com/mutablelogic/go-collect/quota"
	schema "github.com/mutablelogic/go-collect/schema"
	uploader "github.com/mutablelogic/go-collect/uploader"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type UploadCommands struct {
	Upload UploadCommand `cmd:"" group:"UPLOAD" help:"Upload files to a workspace"`
	Quota  QuotaCommand  `cmd:"" group:"UPLOAD" help:"Show workspace storage usage"`
}

type UploadCommand struct {
	Workspace   string   `arg:"" help:"Workspace name"`
	Paths       []string `arg:"" type:"path" help:"Files or directories to upload"`
	Folder      string   `name:"folder" short:"f" help:"Destination folder within the workspace"`
	Concurrency int      `name:"concurrency" help:"Number of parallel uploads"`
	Retries     int      `name:"retries" help:"Retry budget per file" default:"-1"`
}

type QuotaCommand struct {
	Workspace string `arg:"" help:"Workspace name"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *UploadCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	files, err := collectFiles(cmd.Paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to upload")
	}

	concurrency := cmd.Concurrency
	if concurrency == 0 {
		concurrency = cfg.Upload.Concurrency
	}
	retries := cmd.Retries
	if retries < 0 {
		retries = cfg.Upload.Retries
	}

	tracker := quota.NewTracker(c, cmd.Workspace)
	if err := tracker.Refresh(app.ctx); err != nil {
		app.logger.Warn("quota unavailable, validation skipped", "error", err)
	}

	u, err := uploader.New(c,
		uploader.WithConcurrency(concurrency),
		uploader.WithRetries(retries, cfg.Upload.Delays...),
		uploader.WithQuota(tracker),
		uploader.WithSink(newConsoleSink()),
	)
	if err != nil {
		return err
	}

	result, err := u.Submit(app.ctx, cmd.Workspace, cmd.Folder, files)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %d of %d files\n", len(result.Succeeded), result.TotalAttempted)
	if !result.Complete() {
		return fmt.Errorf("%d uploads failed", len(result.Failed))
	}
	return nil
}

func (cmd *QuotaCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	snapshot, err := c.Quota(app.ctx, cmd.Workspace)
	if err != nil {
		return err
	}
	return prettyJSON(snapshot)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// collectFiles expands the argument paths into upload candidates, walking
// directories recursively.
func collectFiles(paths []string) ([]schema.File, error) {
	var files []schema.File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			file, err := schema.FileFromPath(p)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			file, err := schema.FileFromPath(path)
			if err != nil {
				return err
			}
			files = append(files, file)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func prettyJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// consoleSink prints upload lifecycle events, throttling progress output to
// one line per quarter of each file.
type consoleSink struct {
	mu   sync.Mutex
	seen map[string]int64
}

var _ collect.Sink = (*consoleSink)(nil)

func newConsoleSink() *consoleSink {
	return &consoleSink{seen: make(map[string]int64)}
}

func (s *consoleSink) Emit(_ context.Context, name string, payload any) {
	switch name {
	case schema.UploadProgressEvent:
		event, ok := payload.(schema.UploadEvent)
		if !ok || event.Bytes <= 0 {
			return
		}
		quarter := event.Written * 4 / event.Bytes
		s.mu.Lock()
		last, printed := s.seen[event.TaskID]
		if printed && quarter <= last {
			s.mu.Unlock()
			return
		}
		s.seen[event.TaskID] = quarter
		s.mu.Unlock()
		fmt.Printf("%s: %d%%\n", event.Name, event.Written*100/event.Bytes)
	case schema.UploadSuccessEvent:
		if event, ok := payload.(schema.UploadEvent); ok {
			fmt.Printf("%s: done (%d bytes)\n", event.Name, event.Written)
		}
	case schema.UploadErrorEvent:
		if event, ok := payload.(schema.UploadEvent); ok {
			fmt.Fprintf(os.Stderr, "%s: failed: %s\n", event.Name, event.Message)
		}
	case schema.UploadRetryEvent:
		if event, ok := payload.(schema.UploadEvent); ok {
			fmt.Fprintf(os.Stderr, "%s: retry %d/%d: %s\n", event.Name, event.Retry, event.MaxRetries, event.Message)
		}
	case schema.StorageWarningEvent:
		if info, ok := payload.(schema.StorageInfo); ok {
			fmt.Fprintf(os.Stderr, "warning: storage %.0f%% used\n", info.UsagePercentage)
		}
	}
}
