package storage

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/model"
)

const (
	delimiter = "|"
	numFields = 4 // ID|Host|Port|Kind
)

// FileStorage 使用纯文本（或 YAML）文件保存代理列表。
// 文本格式每行一个代理，支持:
//
//	ID|Host|Port|Kind
//	Host|Port|Kind
//	kind://host:port
//
// 以 .yaml / .yml 结尾的文件使用 YAML 格式。
type FileStorage struct {
	filePath string
	mu       sync.RWMutex
}

// yamlFile is the on-disk YAML layout.
type yamlFile struct {
	Proxies []yamlProxy `yaml:"proxies"`
}

type yamlProxy struct {
	ID   string `yaml:"id,omitempty"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Kind string `yaml:"kind"`
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

func (fs *FileStorage) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(fs.filePath))
	return ext == ".yaml" || ext == ".yml"
}

// Load 从文件加载代理列表。文件不存在时返回空列表。
func (fs *FileStorage) Load() ([]model.ProxyDescriptor, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	l := logger.WithComponent("ProxyPool/Storage")

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("path", fs.filePath).Msg("Proxy list file not found, starting with an empty list.")
			return nil, nil
		}
		return nil, err
	}

	if fs.isYAML() {
		return parseYAML(data)
	}

	var proxies []model.ProxyDescriptor
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		d, err := ParseLine(line)
		if err != nil {
			l.Warn().Int("line", lineNum).Err(err).Msg("Skipping malformed line in proxy file.")
			continue
		}
		proxies = append(proxies, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.Info().Int("count", len(proxies)).Str("path", fs.filePath).Msg("Successfully loaded proxies from file.")
	return proxies, nil
}

// Save 将代理列表写入文件。
func (fs *FileStorage) Save(proxies []model.ProxyDescriptor) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var data []byte
	if fs.isYAML() {
		out := yamlFile{Proxies: make([]yamlProxy, 0, len(proxies))}
		for _, p := range proxies {
			out.Proxies = append(out.Proxies, yamlProxy{ID: p.ID, Host: p.Host, Port: p.Port, Kind: string(p.Kind)})
		}
		b, err := yaml.Marshal(&out)
		if err != nil {
			return fmt.Errorf("failed to marshal proxy list: %w", err)
		}
		data = b
	} else {
		var sb strings.Builder
		for _, p := range proxies {
			sb.WriteString(formatProxy(p))
			sb.WriteString("\n")
		}
		data = []byte(sb.String())
	}

	if err := os.WriteFile(fs.filePath, data, 0644); err != nil {
		return err
	}

	l := logger.WithComponent("ProxyPool/Storage")
	l.Debug().Int("count", len(proxies)).Msg("Saved proxy list to file.")
	return nil
}

// formatProxy 将代理格式化为一行文本。
func formatProxy(p model.ProxyDescriptor) string {
	return strings.Join([]string{
		p.ID,
		p.Host,
		strconv.Itoa(p.Port),
		string(p.Kind),
	}, delimiter)
}

// ParseLine parses one text-format line into a descriptor. The ID is left
// empty unless the line carries one.
func ParseLine(line string) (model.ProxyDescriptor, error) {
	if strings.Contains(line, "://") {
		return parseURL(line)
	}

	fields := strings.Split(line, delimiter)
	var id string
	switch len(fields) {
	case numFields:
		id, fields = fields[0], fields[1:]
	case numFields - 1:
	default:
		return model.ProxyDescriptor{}, fmt.Errorf("expected %d or %d fields, got %d", numFields-1, numFields, len(fields))
	}

	port, ok := model.ParsePort(fields[1])
	if !ok {
		return model.ProxyDescriptor{}, fmt.Errorf("invalid port: %q", fields[1])
	}
	kind, ok := model.ParseKind(fields[2])
	if !ok {
		return model.ProxyDescriptor{}, fmt.Errorf("invalid kind: %q", fields[2])
	}
	host := strings.TrimSpace(fields[0])
	if host == "" {
		return model.ProxyDescriptor{}, fmt.Errorf("missing host")
	}
	return model.ProxyDescriptor{ID: strings.TrimSpace(id), Host: host, Port: port, Kind: kind}, nil
}

func parseURL(line string) (model.ProxyDescriptor, error) {
	u, err := url.Parse(line)
	if err != nil {
		return model.ProxyDescriptor{}, err
	}
	kind, ok := model.ParseKind(u.Scheme)
	if !ok {
		return model.ProxyDescriptor{}, fmt.Errorf("invalid kind: %q", u.Scheme)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return model.ProxyDescriptor{}, fmt.Errorf("invalid address %q: %w", u.Host, err)
	}
	port, ok := model.ParsePort(portStr)
	if !ok || host == "" {
		return model.ProxyDescriptor{}, fmt.Errorf("invalid address %q", u.Host)
	}
	return model.ProxyDescriptor{Host: host, Port: port, Kind: kind}, nil
}

func parseYAML(data []byte) ([]model.ProxyDescriptor, error) {
	var in yamlFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse proxy list: %w", err)
	}
	l := logger.WithComponent("ProxyPool/Storage")
	proxies := make([]model.ProxyDescriptor, 0, len(in.Proxies))
	for i, p := range in.Proxies {
		kind, ok := model.ParseKind(p.Kind)
		if !ok || p.Host == "" || p.Port < 0 || p.Port > 65535 {
			l.Warn().Int("entry", i).Msg("Skipping malformed entry in proxy file.")
			continue
		}
		proxies = append(proxies, model.ProxyDescriptor{ID: p.ID, Host: p.Host, Port: p.Port, Kind: kind})
	}
	return proxies, nil
}
