package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/client"
	"github.com/airenas/transcript-workbench/internal/session"
	"github.com/labstack/gommon/color"
	"gopkg.in/yaml.v3"
)

const usage = `usage: transcript-cli [flags] <command> [args]

commands:
  jobs                   list transcription jobs
  show <id>              show transcript details
  upload <file>          create a transcription job
  wait <id>              poll a job until it completes
  improve <id>           improve transcripts of a completed job
  save <id> <file.yaml>  store edited sentences of a job
  transcribe <file>      single shot transcription, no job is created
  manuscript <topic>     generate a manuscript

flags:
`

type options struct {
	url      string
	timeout  time.Duration
	interval time.Duration
}

func main() {
	opt := options{}
	fs := flag.NewFlagSet("transcript-cli", flag.ExitOnError)
	fs.StringVar(&opt.url, "url", envOr("API_URL", "http://localhost:8000"), "Transcription API URL (or API_URL)")
	fs.DurationVar(&opt.timeout, "timeout", 3*time.Minute, "Timeout for uploads and AI calls")
	fs.DurationVar(&opt.interval, "interval", 3*time.Second, "Poll interval of wait")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(2)
	}

	cl := color.New()
	if err := run(context.Background(), opt, fs.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cl.Red("[error]"), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opt options, args []string, out io.Writer) error {
	c, err := client.NewClient(opt.url, 0, opt.timeout)
	if err != nil {
		return err
	}
	cmd, args := args[0], args[1:]
	need := map[string]int{"jobs": 0, "show": 1, "upload": 1, "wait": 1, "improve": 1, "save": 2,
		"transcribe": 1, "manuscript": 1}
	n, ok := need[cmd]
	if !ok {
		return fmt.Errorf("unknown command '%s'", cmd)
	}
	if len(args) != n {
		return fmt.Errorf("%s expects %d argument(s)", cmd, n)
	}

	var res interface{}
	switch cmd {
	case "jobs":
		res, err = c.ListJobs(ctx)
	case "show":
		res, err = c.GetTranscript(ctx, args[0])
	case "upload":
		res, err = withFile(args[0], func(name string, r io.Reader) (interface{}, error) {
			return c.CreateJob(ctx, name, r)
		})
	case "wait":
		res, err = wait(ctx, c, args[0], opt.interval)
	case "improve":
		res, err = improve(ctx, c, args[0])
	case "save":
		res, err = save(ctx, c, args[0], args[1])
	case "transcribe":
		res, err = withFile(args[0], func(name string, r io.Reader) (interface{}, error) {
			return c.Transcribe(ctx, name, r)
		})
	case "manuscript":
		res, err = c.Manuscript(ctx, args[0])
	}
	if err != nil {
		return err
	}
	return writeYAML(out, res)
}

func withFile(path string, f func(name string, r io.Reader) (interface{}, error)) (interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return f(filepath.Base(path), file)
}

// wait polls the job the same way the UI does until it completes
func wait(ctx context.Context, c *client.Client, id string, interval time.Duration) (*api.TranscriptDetail, error) {
	var res *api.TranscriptDetail
	var err error
	p := session.StartPoller(ctx, id, interval, session.NewTimeTicker, func(ctx context.Context) bool {
		var d *api.TranscriptDetail
		d, err = c.GetTranscript(ctx, id)
		if err != nil {
			return client.IsNotFound(err)
		}
		if !d.Completed() {
			goapp.Log.Info().Str("id", id).Str("status", d.Status).Msg("waiting")
			return false
		}
		res = d
		return true
	})
	<-p.Done()
	if res == nil && err == nil {
		err = ctx.Err()
	}
	return res, err
}

func improve(ctx context.Context, c *client.Client, id string) (*api.ImprovedTranscript, error) {
	d, err := c.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Completed() {
		return nil, fmt.Errorf("job %s is still %s", id, d.Status)
	}
	sentences, err := c.Improve(ctx, d.WhisperTranscript, d.CortiTranscript)
	if err != nil {
		return nil, err
	}
	return &api.ImprovedTranscript{Sentences: sentences}, nil
}

func save(ctx context.Context, c *client.Client, id, path string) (*api.UpdateResponse, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data := &api.ImprovedTranscript{}
	if err := fromYAML(b, data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := c.SaveImproved(ctx, id, data.Sentences); err != nil {
		return nil, err
	}
	return &api.UpdateResponse{Message: fmt.Sprintf("saved %d sentences", len(data.Sentences))}, nil
}

// writeYAML writes v as yaml keeping the json field names of the API
func writeYAML(out io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func fromYAML(b []byte, v interface{}) error {
	var generic interface{}
	if err := yaml.Unmarshal(b, &generic); err != nil {
		return err
	}
	jb, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	return json.Unmarshal(jb, v)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
