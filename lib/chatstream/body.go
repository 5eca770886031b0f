// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatstream

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is sent when compression is enabled. Setting it by
// hand disables net/http's transparent gzip handling, so both codings
// are decoded here.
const acceptEncoding = "zstd, gzip"

// decodeBody wraps the response body in the decoder its
// Content-Encoding names. Decoders are constructed on first Read: both
// codecs read a header eagerly, and blocking Open on the first
// compressed bytes would hide that wait from the idle watchdog.
func decodeBody(response *http.Response) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return response.Body, nil
	case "gzip", "x-gzip":
		return &lazyDecoder{
			source: response.Body,
			open: func(source io.Reader) (io.Reader, func(), error) {
				reader, err := gzip.NewReader(source)
				if err != nil {
					return nil, nil, err
				}
				return reader, func() { reader.Close() }, nil
			},
		}, nil
	case "zstd":
		return &lazyDecoder{
			source: response.Body,
			open: func(source io.Reader) (io.Reader, func(), error) {
				decoder, err := zstd.NewReader(source, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
				if err != nil {
					return nil, nil, err
				}
				return decoder, decoder.Close, nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("chatstream: unsupported Content-Encoding %q", encoding)
	}
}

type lazyDecoder struct {
	source io.ReadCloser
	open   func(io.Reader) (io.Reader, func(), error)

	reader  io.Reader
	release func()
	err     error

	closeOnce sync.Once
}

func (decoder *lazyDecoder) Read(buffer []byte) (int, error) {
	if decoder.err != nil {
		return 0, decoder.err
	}
	if decoder.reader == nil {
		reader, release, err := decoder.open(decoder.source)
		if err != nil {
			decoder.err = fmt.Errorf("chatstream: decoding body: %w", err)
			return 0, decoder.err
		}
		decoder.reader = reader
		decoder.release = release
	}
	return decoder.reader.Read(buffer)
}

// Close closes the network body first so a decoder blocked in Read on
// another goroutine is released.
func (decoder *lazyDecoder) Close() error {
	var err error
	decoder.closeOnce.Do(func() {
		err = decoder.source.Close()
	})
	return err
}

// releaseDecoder frees decoder resources. Only the reading goroutine
// calls it, after its last Read.
func releaseDecoder(body io.ReadCloser) {
	if decoder, ok := body.(*lazyDecoder); ok && decoder.release != nil {
		decoder.release()
		decoder.release = nil
	}
}
