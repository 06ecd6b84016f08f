package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spanyaml/spanyaml/pkg/console"
)

// debounceDelay coalesces editor save bursts into a single re-check.
const debounceDelay = 300 * time.Millisecond

// WatchFiles runs CheckFiles once, then re-runs it whenever one of the
// files changes on disk. It blocks until interrupted.
func WatchFiles(files []string, schemaPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the containing directories so edits that replace the file
	// (the common editor save strategy) are still observed.
	watched := make(map[string]bool)
	targets := make(map[string]bool, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watched[dir] = true
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runCheck := func() {
		if err := CheckFiles(files, schemaPath); err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		}
	}

	fmt.Println(console.FormatInfoMessage(fmt.Sprintf("Watching %d file(s) for changes. Press Ctrl+C to stop.", len(files))))
	runCheck()

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !targets[abs] {
				continue
			}
			pending = time.After(debounceDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("Watcher error: %v", err)))
		case <-pending:
			pending = nil
			runCheck()
		case <-sigCh:
			fmt.Println(console.FormatInfoMessage("Stopping watch mode"))
			return nil
		}
	}
}
