package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/resources"
)

var (
	ErrClosed          = errors.New("asset manager already closed")
	ErrUnknownAsset    = errors.New("unknown asset type")
	ErrNoLoader        = errors.New("no loader registered for asset type")
	ErrUnexpectedAsset = errors.New("asset has an unexpected type")
)

type AssetInfo struct {
	Path       string
	Type       resources.ResourceType
	LastLoaded time.Time
}

// ReloadFunc is called from the watcher goroutine when a tracked file is
// created or written.
type ReloadFunc func(info AssetInfo)

type AssetManager struct {
	root      string
	assets    map[string]AssetInfo
	loaders   map[resources.ResourceType]Loader
	listeners []ReloadFunc

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	watching bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[resources.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	// Register loaders
	am.registerLoader(resources.ResourceTypeSkeleton, &loaders.SkeletonLoader{})
	am.registerLoader(resources.ResourceTypeFeatureSet, &loaders.FeatureSetLoader{})
	am.registerLoader(resources.ResourceTypeClip, &loaders.ClipLoader{})
	am.registerLoader(resources.ResourceTypeModel, &loaders.ModelLoader{})
	am.registerLoader(resources.ResourceTypeTensor, &loaders.BinaryLoader{})

	return am, nil
}

// Initialize indexes every asset below assetsDir. With watch set, changes are
// tracked and reported to the OnReload listeners.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	if watch {
		am.watching = true
		go am.start()
	}
	return am.walk(root, watch)
}

// Root is the absolute assets directory.
func (am *AssetManager) Root() string {
	return am.root
}

// OnReload registers fn to be told about asset changes.
func (am *AssetManager) OnReload(fn ReloadFunc) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.listeners = append(am.listeners, fn)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType resources.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Resolve turns a path relative to the assets directory into an absolute one.
func (am *AssetManager) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(am.root, path)
}

// Assets lists the indexed assets of a type ordered by path.
func (am *AssetManager) Assets(resourceType resources.ResourceType) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var out []AssetInfo
	for _, a := range am.assets {
		if a.Type == resourceType {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// LoadAsset loads an asset using the loader of its type. Files outside of the
// assets directory are indexed on first use.
func (am *AssetManager) LoadAsset(path string, params interface{}) (*resources.Resource, error) {
	path = am.Resolve(path)

	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil, ErrClosed
	}
	asset, exists := am.assets[path]
	if !exists {
		asset = AssetInfo{Path: path, Type: resources.DetermineResourceType(path)}
		if asset.Type == resources.ResourceTypeNone {
			am.mutex.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, path)
		}
	}
	// Load or reload asset from disk if necessary
	asset.LastLoaded = time.Now()
	am.assets[path] = asset // Update the loaded time
	loader, loaderExists := am.loaders[asset.Type]
	am.mutex.Unlock()

	if !loaderExists {
		return nil, fmt.Errorf("%w: %s", ErrNoLoader, asset.Type)
	}

	res, err := loader.Load(path, params)
	if err != nil {
		return nil, err
	}
	core.LogDebug("asset loaded", "path", path, "type", asset.Type, "bytes", res.DataSize)
	return res, nil
}

func (am *AssetManager) UnloadAsset(asset *resources.Resource) error {
	am.mutex.RLock()
	loader, ok := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoLoader, asset.Type)
	}
	return loader.Unload(asset)
}

// Shutdown stops the watcher. It is safe to call more than once.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	if !am.watching {
		return am.fsnotify.Close()
	}
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.walk(e.Name, true); err != nil {
						core.LogWarn("failed to watch directory", "path", e.Name, "err", err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if info, ok := am.handleFileEvent(e.Name); ok {
					am.notify(info)
				}
			}
			// Can't stat a deleted directory, so just pretend that it's always a directory and
			// try to remove from the watch list.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher", "err", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// walk indexes every file under path, adding the directories to the watch
// list when watch is set.
func (am *AssetManager) walk(path string, watch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if watch {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	assetType := resources.DetermineResourceType(path)
	if assetType == resources.ResourceTypeNone {
		return AssetInfo{}, false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return AssetInfo{}, false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := AssetInfo{
		Path: abs,
		Type: assetType,
	}
	if prev, ok := am.assets[abs]; ok {
		info.LastLoaded = prev.LastLoaded
	}
	am.assets[abs] = info
	return info, true
}

func (am *AssetManager) notify(info AssetInfo) {
	am.mutex.RLock()
	listeners := append([]ReloadFunc(nil), am.listeners...)
	am.mutex.RUnlock()

	for _, fn := range listeners {
		fn(info)
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, abs)
}
