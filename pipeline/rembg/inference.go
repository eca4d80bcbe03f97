package rembg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strconv"
	"time"

	nhttp "github.com/chaos-io/bgstrip/util/http"
)

const removePath = "/api/remove"

// InferenceRemover 调远程推理服务抠图
// 单次异步调用，模型先加载后推理，可能很慢，没有进度上报，也没有取消原语
type InferenceRemover struct {
	baseURL string
	timeout time.Duration
	cli     nhttp.IClient
}

func NewInferenceRemover(baseURL string, timeout time.Duration) *InferenceRemover {
	return &InferenceRemover{
		baseURL: baseURL,
		timeout: timeout,
		cli:     nhttp.NewHTTPClient(),
	}
}

/*
	curl -X POST "$BASE_URL/api/remove" \
	  -F "image=@my_image.png" \
	  -F "format=png" -F "quality=100" \
	  -F "device=cpu" -F "rescale=false"

响应体为处理后的图片字节
*/
func (r *InferenceRemover) Remove(ctx context.Context, blob []byte, cfg Config) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "input."+cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %v", ErrRemovalFailed, err)
	}
	if _, err := part.Write(blob); err != nil {
		return nil, fmt.Errorf("%w: write form file: %v", ErrRemovalFailed, err)
	}

	_ = writer.WriteField("format", cfg.Format)
	_ = writer.WriteField("quality", strconv.Itoa(cfg.Quality))
	_ = writer.WriteField("device", cfg.Device)
	_ = writer.WriteField("rescale", strconv.FormatBool(cfg.Rescale))
	_ = writer.Close()

	var out []byte
	reqParam := &nhttp.RequestParam{
		RequestURI:  r.baseURL + removePath,
		Method:      "POST",
		Header:      map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:        body,
		RawResponse: &out,
		Timeout:     r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		slog.Error("rembg inference request failed", "url", reqParam.RequestURI, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRemovalFailed, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrRemovalFailed)
	}

	slog.Debug("rembg inference done", "input_bytes", len(blob), "output_bytes", len(out))
	return out, nil
}
