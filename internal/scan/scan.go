// Package scan finds large files under a directory with hard bounds on
// depth, items visited, and wall-clock time.
package scan

import (
	"container/heap"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/Dicklesworthstone/osdiag/internal/model"
)

const (
	DefaultMinSizeMB = 100
	DefaultLimit     = 20
	DefaultMaxDepth  = 5
	DefaultMaxItems  = 10000
	DefaultTimeout   = 30 * time.Second
)

const op = "find_large_files"

// Options bounds one scan. Zero values select the defaults.
type Options struct {
	Root      string
	MinSizeMB float64
	Limit     int
	MaxDepth  int
	MaxItems  int
	Timeout   time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.Root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return o, model.InvalidArgument(op, "no directory given and no home directory: %v", err)
		}
		o.Root = home
	}
	if o.MinSizeMB <= 0 {
		o.MinSizeMB = DefaultMinSizeMB
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// Entry is one file at or above the size threshold.
type Entry struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Reason names the budget that cut a scan short.
type Reason string

const (
	ReasonDepth Reason = "depth"
	ReasonItems Reason = "items"
	ReasonTime  Reason = "time"
)

// Result holds the largest entries found plus traversal statistics.
// Truncated scans still carry everything found before the budget ran out.
type Result struct {
	Root             string        `json:"root"`
	MinSize          int64         `json:"min_size"`
	Entries          []Entry       `json:"entries"`
	Scanned          int           `json:"scanned"`
	PermissionErrors int           `json:"permission_errors"`
	OtherErrors      int           `json:"other_errors"`
	Truncated        bool          `json:"truncated"`
	Reasons          []Reason      `json:"reasons,omitempty"`
	Duration         time.Duration `json:"duration"`
}

func (r *Result) truncate(why Reason) {
	r.Truncated = true
	for _, have := range r.Reasons {
		if have == why {
			return
		}
	}
	r.Reasons = append(r.Reasons, why)
}

func (r *Result) fail(err error) {
	if errors.Is(err, fs.ErrPermission) {
		r.PermissionErrors++
		return
	}
	r.OtherErrors++
}

// Scanner walks directories without following symbolic links.
type Scanner struct {
	Logger hclog.Logger

	readDir func(string) ([]fs.DirEntry, error)
	now     func() time.Time
}

func New() *Scanner {
	return &Scanner{
		Logger:  hclog.NewNullLogger(),
		readDir: os.ReadDir,
		now:     time.Now,
	}
}

type dirItem struct {
	path  string
	depth int
}

// Scan walks opts.Root depth-first. A failing entry is counted and skipped;
// only an unusable root is an error.
func (s *Scanner) Scan(opts Options) (Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}
	root := filepath.Clean(opts.Root)
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{}, model.InvalidArgument(op, "directory not found: %s", root)
	case err != nil:
		return Result{}, model.InvalidArgument(op, "cannot access %s: %v", root, err)
	case !info.IsDir():
		return Result{}, model.InvalidArgument(op, "not a directory: %s", root)
	}

	start := s.now()
	res := Result{Root: root, MinSize: int64(opts.MinSizeMB * 1024 * 1024)}
	top := &largest{}
	work := []dirItem{{path: root}}

walk:
	for len(work) > 0 {
		if s.now().Sub(start) > opts.Timeout {
			res.truncate(ReasonTime)
			break
		}
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		entries, err := s.readDir(cur.path)
		if err != nil {
			res.fail(err)
		}
		var subdirs []dirItem
		for _, e := range entries {
			if res.Scanned >= opts.MaxItems {
				res.truncate(ReasonItems)
				break walk
			}
			if s.now().Sub(start) > opts.Timeout {
				res.truncate(ReasonTime)
				break walk
			}
			res.Scanned++
			path := filepath.Join(cur.path, e.Name())
			switch t := e.Type(); {
			case t&fs.ModeSymlink != 0:
				continue
			case t.IsDir():
				if cur.depth+1 > opts.MaxDepth {
					res.truncate(ReasonDepth)
					continue
				}
				subdirs = append(subdirs, dirItem{path: path, depth: cur.depth + 1})
			case t.IsRegular():
				fi, err := e.Info()
				if err != nil {
					res.fail(err)
					continue
				}
				if fi.Size() >= res.MinSize {
					top.offer(Entry{Path: path, Size: fi.Size(), Modified: fi.ModTime()}, opts.Limit)
				}
			}
		}
		// Reverse so siblings pop in directory order.
		for i := len(subdirs) - 1; i >= 0; i-- {
			work = append(work, subdirs[i])
		}
	}

	res.Entries = top.sorted()
	res.Duration = s.now().Sub(start)
	if res.Truncated {
		s.Logger.Info("scan truncated", "root", root, "reasons", res.Reasons, "scanned", res.Scanned)
	}
	return res, nil
}

// largest is a min-heap of at most limit entries; the root is the entry
// that would be evicted first.
type largest []Entry

func worse(a, b Entry) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.Path > b.Path
}

func (h largest) Len() int           { return len(h) }
func (h largest) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h largest) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *largest) Push(x any)        { *h = append(*h, x.(Entry)) }
func (h *largest) Pop() any {
	old := *h
	e := old[len(old)-1]
	*h = old[:len(old)-1]
	return e
}

func (h *largest) offer(e Entry, limit int) {
	if h.Len() < limit {
		heap.Push(h, e)
		return
	}
	if worse((*h)[0], e) {
		(*h)[0] = e
		heap.Fix(h, 0)
	}
}

// sorted returns the entries by size descending, then path ascending.
func (h largest) sorted() []Entry {
	out := make([]Entry, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool { return worse(out[j], out[i]) })
	return out
}
