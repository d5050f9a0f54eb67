// Package filelog 是一个写后即返回的本地缓冲日志。
// 记录先落到文件，后台批量交给 SubFunc（比如落库），
// SubFunc 失败时记录留在文件里下轮重试，进程重启也不丢。
package filelog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

// 文件头 16 字节：读偏移 + 写偏移
const headerSize = 16

var (
	littleEndian = binary.LittleEndian

	errCorruptRecord = errors.New("filelog: corrupt record")
)

// Config Config
type Config struct {
	File string
	// SubFunc 消费一批记录，返回 error 表示整批下轮重试
	SubFunc func(logs []*bytes.Buffer) error
	// FlushInterval 批量消费的间隔，默认 1s
	FlushInterval time.Duration
}

// FileLog 用于记录数据
type FileLog struct {
	mu       sync.Mutex
	file     *os.File
	readOff  int64
	writeOff int64
	sub      func(logs []*bytes.Buffer) error
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
}

// NewFileLog 根据文件路径创建一个 FileLog
func NewFileLog(config *Config) (*FileLog, error) {
	// 不能用 os.O_APPEND 模式，偏移量要自己管
	f, err := os.OpenFile(config.File, os.O_CREATE|os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, err
	}

	interval := config.FlushInterval
	if interval == 0 {
		interval = time.Second
	}

	fl := &FileLog{
		file:     f,
		sub:      config.SubFunc,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.Size() < headerSize {
		fl.readOff, fl.writeOff = headerSize, headerSize
		if err := fl.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		fl.readOff = int64(readUint64(f, 0))
		fl.writeOff = int64(readUint64(f, 8))
	}

	go fl.flushloop()
	return fl, nil
}

// Write 追加一条记录，落盘即返回
func (flog *FileLog) Write(record []byte) error {
	buf := make([]byte, 4+len(record))
	littleEndian.PutUint32(buf, uint32(len(record)))
	copy(buf[4:], record)

	flog.mu.Lock()
	defer flog.mu.Unlock()

	if _, err := flog.file.WriteAt(buf, flog.writeOff); err != nil {
		return err
	}
	flog.writeOff += int64(len(buf))
	return flog.writeHeader()
}

func (flog *FileLog) flushloop() {
	defer close(flog.done)
	ticker := time.NewTicker(flog.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := flog.flush(); err != nil {
				log.Println("filelog flush:", err)
			}
		case <-flog.quit:
			// 关闭前最后清一次
			if err := flog.flush(); err != nil {
				log.Println("filelog flush:", err)
			}
			return
		}
	}
}

// flush 把 [readOff, writeOff) 之间的记录整批交给 sub。
// sub 成功才推进读偏移，期间新写入的记录留到下一轮
func (flog *FileLog) flush() error {
	flog.mu.Lock()
	start, end := flog.readOff, flog.writeOff
	if start == end {
		flog.mu.Unlock()
		return nil
	}
	span := make([]byte, end-start)
	if _, err := flog.file.ReadAt(span, start); err != nil {
		flog.mu.Unlock()
		return err
	}
	flog.mu.Unlock()

	logs, err := splitRecords(span)
	if err != nil {
		return err
	}
	if err := flog.sub(logs); err != nil {
		return err
	}

	flog.mu.Lock()
	defer flog.mu.Unlock()
	flog.readOff = end
	if flog.readOff == flog.writeOff {
		flog.readOff, flog.writeOff = headerSize, headerSize
		if err := flog.file.Truncate(headerSize); err != nil {
			return err
		}
	}
	return flog.writeHeader()
}

func splitRecords(span []byte) ([]*bytes.Buffer, error) {
	var logs []*bytes.Buffer
	for len(span) > 0 {
		if len(span) < 4 {
			return nil, errCorruptRecord
		}
		length := littleEndian.Uint32(span)
		span = span[4:]
		if uint32(len(span)) < length {
			return nil, errCorruptRecord
		}
		logs = append(logs, bytes.NewBuffer(span[:length]))
		span = span[length:]
	}
	return logs, nil
}

func (flog *FileLog) writeHeader() error {
	buf := make([]byte, headerSize)
	littleEndian.PutUint64(buf, uint64(flog.readOff))
	littleEndian.PutUint64(buf[8:], uint64(flog.writeOff))
	_, err := flog.file.WriteAt(buf, 0)
	return err
}

// Close 停掉后台消费并关闭文件
func (flog *FileLog) Close() {
	close(flog.quit)
	<-flog.done
	flog.file.Close()
}

func readUint64(file *os.File, offset int64) uint64 {
	buf := make([]byte, 8)
	n, err := file.ReadAt(buf, offset)
	if err != nil || n != 8 {
		return headerSize
	}
	return littleEndian.Uint64(buf)
}
