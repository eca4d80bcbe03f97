package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// ReadBlob 读取本地图片字节
func ReadBlob(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DownloadBlob 下载远程图片字节，返回数据和服务端声明的 Content-Type
// maxBytes > 0 时超限返回错误
func DownloadBlob(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status code %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("response exceeds %d bytes", maxBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
