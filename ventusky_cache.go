package ventusky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache[T any] interface {
	GetCache(ctx context.Context, cacheName string) (*T, cacheInfo, error)
	SetCache(ctx context.Context, cacheName string, cacheObject *T, cacheInfoObject cacheInfo) error
	ClearCache(ctx context.Context, cacheName string) error
}

////////////////////////////////////////////////////////////
// Memory Cache
////////////////////////////////////////////////////////////

type MemoryCache[T any] struct {
	mu              sync.RWMutex
	CacheObject     map[string]*T
	CacheInfoObject map[string]cacheInfo
}

func (m *MemoryCache[T]) GetCache(_ context.Context, cacheName string) (*T, cacheInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CacheObject[cacheName], m.CacheInfoObject[cacheName], nil
}

func (m *MemoryCache[T]) SetCache(_ context.Context, cacheName string, cacheObject *T, cacheInfoObject cacheInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.makeSureMapIsInitialized()
	m.CacheObject[cacheName] = cacheObject
	m.CacheInfoObject[cacheName] = cacheInfoObject
	return nil
}

func (m *MemoryCache[T]) ClearCache(_ context.Context, cacheName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.CacheObject, cacheName)
	delete(m.CacheInfoObject, cacheName)
	return nil
}

func (m *MemoryCache[T]) makeSureMapIsInitialized() {
	if m.CacheObject == nil {
		m.CacheObject = map[string]*T{}
	}
	if m.CacheInfoObject == nil {
		m.CacheInfoObject = map[string]cacheInfo{}
	}
}

////////////////////////////////////////////////////////////
// Disk Cache
////////////////////////////////////////////////////////////

type DiskCache[T any] struct {
	CacheDirectory string
}

func (m *DiskCache[T]) GetCache(_ context.Context, cacheName string) (*T, cacheInfo, error) {
	// No directory provided, nothing cached
	if m.CacheDirectory == "" {
		return nil, cacheInfo{}, nil
	}

	cacheFileName, cacheInfoFileName := m.getCacheFileNames(cacheName)

	// Try getting the data file
	cacheFilePath := filepath.Join(m.CacheDirectory, cacheFileName)
	cacheDataObject, err := readJsonFromFile[T](cacheFilePath, false)
	if err != nil {
		return nil, cacheInfo{}, err
	} else if cacheDataObject == nil {
		return nil, cacheInfo{}, nil
	}

	// Try getting the info file
	cacheInfoFilePath := filepath.Join(m.CacheDirectory, cacheInfoFileName)
	cacheInfoObject, err := readJsonFromFile[cacheInfo](cacheInfoFilePath, false)
	if err != nil {
		return nil, cacheInfo{}, err
	} else if cacheInfoObject == nil {
		return nil, cacheInfo{}, nil
	}

	return cacheDataObject, *cacheInfoObject, nil
}

func (m *DiskCache[T]) SetCache(_ context.Context, cacheName string, cacheObject *T, cacheInfoObject cacheInfo) error {
	// No directory provided, return without saving
	if m.CacheDirectory == "" {
		return nil
	}

	if err := os.MkdirAll(m.CacheDirectory, 0o755); err != nil {
		return err
	}

	cacheFileName, cacheInfoFileName := m.getCacheFileNames(cacheName)

	// CacheObject
	cacheFilePath := filepath.Join(m.CacheDirectory, cacheFileName)
	cacheString, err := json.MarshalIndent(cacheObject, "", " ")
	if err != nil {
		return fmt.Errorf("failed converting the data object to a string: %w", err)
	}
	if err := os.WriteFile(cacheFilePath, cacheString, 0o644); err != nil {
		return fmt.Errorf("failed storing the cache file: %w", err)
	}

	// CacheInfoObject
	cacheInfoFilePath := filepath.Join(m.CacheDirectory, cacheInfoFileName)
	cacheInfoString, err := json.MarshalIndent(cacheInfoObject, "", " ")
	if err != nil {
		return fmt.Errorf("failed converting the info object to a string: %w", err)
	}
	if err := os.WriteFile(cacheInfoFilePath, cacheInfoString, 0o644); err != nil {
		return fmt.Errorf("failed storing the info file: %w", err)
	}

	return nil
}

func (m *DiskCache[T]) ClearCache(_ context.Context, cacheName string) error {
	if m.CacheDirectory == "" {
		return nil
	}
	cacheFileName, cacheInfoFileName := m.getCacheFileNames(cacheName)
	for _, name := range []string{cacheFileName, cacheInfoFileName} {
		if err := os.Remove(filepath.Join(m.CacheDirectory, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed removing cache file '%s': %w", name, err)
		}
	}
	return nil
}

func (m *DiskCache[T]) getCacheFileNames(cacheName string) (string, string) {
	cacheFileName := fmt.Sprintf("ventusky-%s.json", cacheName)
	cacheInfoFileName := fmt.Sprintf("ventusky-%s-info.json", cacheName)
	return cacheFileName, cacheInfoFileName
}

////////////////////////////////////////////////////////////
// Redis Cache
////////////////////////////////////////////////////////////

// RedisCache stores entries as JSON under "<KeyPrefix><cacheName>".
// Entries are kept for Retention after they were written; zero keeps them forever.
type RedisCache[T any] struct {
	Client    redis.UniversalClient
	KeyPrefix string
	Retention time.Duration
}

type redisCacheEntry[T any] struct {
	Object *T        `json:"object"`
	Info   cacheInfo `json:"info"`
}

func (m *RedisCache[T]) GetCache(ctx context.Context, cacheName string) (*T, cacheInfo, error) {
	data, err := m.Client.Get(ctx, m.key(cacheName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cacheInfo{}, nil
	} else if err != nil {
		return nil, cacheInfo{}, fmt.Errorf("failed to get '%s' from redis: %w", cacheName, err)
	}

	var entry redisCacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, cacheInfo{}, fmt.Errorf("error converting redis entry '%s' to json: %w", cacheName, err)
	}
	return entry.Object, entry.Info, nil
}

func (m *RedisCache[T]) SetCache(ctx context.Context, cacheName string, cacheObject *T, cacheInfoObject cacheInfo) error {
	data, err := json.Marshal(redisCacheEntry[T]{Object: cacheObject, Info: cacheInfoObject})
	if err != nil {
		return fmt.Errorf("failed converting the data object to a string: %w", err)
	}
	if err := m.Client.Set(ctx, m.key(cacheName), data, m.Retention).Err(); err != nil {
		return fmt.Errorf("failed to store '%s' in redis: %w", cacheName, err)
	}
	return nil
}

func (m *RedisCache[T]) ClearCache(ctx context.Context, cacheName string) error {
	if err := m.Client.Del(ctx, m.key(cacheName)).Err(); err != nil {
		return fmt.Errorf("failed to delete '%s' from redis: %w", cacheName, err)
	}
	return nil
}

func (m *RedisCache[T]) key(cacheName string) string {
	prefix := m.KeyPrefix
	if prefix == "" {
		prefix = "ventusky:"
	}
	return prefix + cacheName
}

func readJsonFromFile[T any](filePath string, errorOnNotFound bool) (*T, error) {
	fileDescriptor, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		// File not found
		if errorOnNotFound {
			return nil, fmt.Errorf("file '%s' not found: %w", filePath, err)
		}
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("error reading the file '%s': %w", filePath, err)
	}
	defer fileDescriptor.Close()
	var dataObject T
	if err := json.NewDecoder(fileDescriptor).Decode(&dataObject); err != nil {
		return nil, fmt.Errorf("error converting the file '%s' to json: %w", filePath, err)
	}
	return &dataObject, nil
}
