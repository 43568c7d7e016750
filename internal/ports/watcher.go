package ports

// Watcher monitors a content directory for page changes and triggers a rebuild.
// The adapter (fsnotify) must filter out non-page files (.git, node_modules,
// build output, editor swap files) before invoking onChange. Only one Watch
// call should be active at a time.
type Watcher interface {
	// Watch starts monitoring contentPath recursively. onChange is called with
	// the absolute path of each changed page. The callback may be invoked from
	// any goroutine. Returns an error if the directory doesn't exist or
	// permissions are insufficient.
	Watch(contentPath string, onChange func(filePath string)) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onChange calls will fire. Safe to call multiple times.
	Stop() error
}
