// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"reflect"

	"github.com/bytedance/sonic"
)

// WriteJSON writes value to w as indented JSON followed by a newline.
// A nil slice is written as [] rather than null.
func WriteJSON(w io.Writer, value any) error {
	encoded, err := sonic.ConfigStd.MarshalIndent(normalizeNilSlice(value), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(encoded, '\n'))
	return err
}

func normalizeNilSlice(value any) any {
	reflected := reflect.ValueOf(value)
	if reflected.Kind() == reflect.Slice && reflected.IsNil() {
		return reflect.MakeSlice(reflected.Type(), 0, 0).Interface()
	}
	return value
}
