package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
type WAL struct {
	file *os.File
	mu   sync.Mutex
	// 每次寫入後是否 fsync
	syncOnWrite bool
}

// Option 設定 WAL 的選項
type Option func(*WAL)

// WithoutSync 關閉每次寫入後的 fsync (測試或可接受遺失最後幾筆的場景)
func WithoutSync() Option {
	return func(w *WAL) {
		w.syncOnWrite = false
	}
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string, opts ...Option) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	w := &WAL{file: file, syncOnWrite: true}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write 寫入一筆資料 (一行 JSON)
func (w *WAL) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(data); err != nil {
		return err
	}
	if w.syncOnWrite {
		return w.file.Sync()
	}
	return nil
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

// ReadAll 從頭讀取所有資料
// callback 每次收到一筆原始 JSON，避免一次將所有資料載入記憶體
// 沒有換行結尾的最後一筆是寫到一半就中斷的紀錄，會被丟棄並截斷檔案，
// 之後的 Write 才會接在最後一筆完整紀錄後面
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(w.file)
	var offset int64
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				return w.truncateTail(offset, len(line))
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read wal: %w", err)
		}

		raw := bytes.TrimSpace(line)
		if len(raw) > 0 {
			if !json.Valid(raw) {
				return fmt.Errorf("decode wal record at offset %d: invalid json", offset)
			}
			if err := callback(raw); err != nil {
				return err
			}
		}
		offset += int64(len(line))
	}
}

// truncateTail 把檔案截斷到 offset (最後一筆完整紀錄之後)
func (w *WAL) truncateTail(offset int64, size int) error {
	log.Warn().
		Str("file", w.file.Name()).
		Int64("offset", offset).
		Int("bytes", size).
		Msg("discarding torn wal record")
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	return w.file.Sync()
}
