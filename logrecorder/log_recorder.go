package logrecorder

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/LoveWonYoung/egsdiag/driver"
)

// RotateInterval 进程日志轮换周期
const RotateInterval = 5 * time.Minute

// BaseDir 日志根目录，默认当前目录
var BaseDir = "."

// NowString 返回当前时间格式为 "20060102_1504" 的字符串
func NowString() string {
	return time.Now().Format("20060102_1504")
}

// MakeDir 在 BaseDir 下创建以日期命名的目录（如：2025_04_25）
func MakeDir() (string, error) {
	now := time.Now()
	dirName := fmt.Sprintf("%d_%02d_%02d", now.Year(), now.Month(), now.Day())
	fullPath := filepath.Join(BaseDir, dirName)

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return "", fmt.Errorf("创建文件夹失败: %w", err)
		}
		log.Println("文件夹已创建:", fullPath)
	}

	return fullPath, nil
}

func openLogFile(name string) (*os.File, error) {
	dir, err := MakeDir()
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(dir, fmt.Sprintf("%s.log", name))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return f, nil
}

var (
	procMu   sync.Mutex
	procFile *os.File
)

// RecorderAsNameInit 把进程日志重定向到 name.log，同时保留 extra 输出 (可为 nil)
func RecorderAsNameInit(name string, extra io.Writer) error {
	f, err := openLogFile(name)
	if err != nil {
		return err
	}
	log.SetPrefix("")
	log.SetFlags(log.Lmicroseconds)
	if extra != nil {
		log.SetOutput(io.MultiWriter(f, extra))
	} else {
		log.SetOutput(f)
	}

	procMu.Lock()
	old := procFile
	procFile = f
	procMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// InitAndRotate 初始化日志记录器，并每 RotateInterval 轮换一次日志文件。
// 取消返回的 stop 后停止轮换。
func InitAndRotate(logName string, extra io.Writer) (stop func()) {
	// 立即执行一次，以创建初始日志文件
	if err := RecorderAsNameInit(logName+NowString(), extra); err != nil {
		log.Printf("初始日志记录器初始化失败: %v", err)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(RotateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := RecorderAsNameInit(logName+NowString(), extra); err != nil {
					log.Printf("日志轮换失败: %v", err)
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Recorder 把 TCU 固件日志逐行写入文件，每次会话一个文件
type Recorder struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	path  string
	lines int
}

// NewRecorder 在日期目录下创建 <prefix><时间>.tcu.log
func NewRecorder(prefix string) (*Recorder, error) {
	f, err := openLogFile(prefix + NowString() + ".tcu")
	if err != nil {
		return nil, err
	}
	return &Recorder{f: f, w: bufio.NewWriter(f), path: f.Name()}, nil
}

func (r *Recorder) Path() string { return r.path }

// Lines 已写入的行数
func (r *Recorder) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

// Record 写入一行，前缀为主机时间
func (r *Recorder) Record(m driver.LogMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return os.ErrClosed
	}
	if _, err := fmt.Fprintf(r.w, "%s %s\n", time.Now().Format("15:04:05.000"), m); err != nil {
		return err
	}
	r.lines++
	return nil
}

// Flush 把缓冲写入磁盘
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	return r.w.Flush()
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.w, r.f = nil, nil
	return err
}
