/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

const (
	sampleStep = 1024
	sampleSize = 1024
)

// ContentHash computes a sampled digest of a book file. It reads 1KiB chunks at
// exponentially growing offsets so that large files are hashed in constant time.
// Byte-identical files always yield the same hash.
func ContentHash(r io.ReaderAt) (string, error) {
	h := md5.New()
	buf := make([]byte, sampleSize)

	for i := -1; i <= 10; i++ {
		var offset int64
		if i < 0 {
			offset = sampleStep >> 2
		} else {
			offset = int64(sampleStep) << uint(2*i)
		}

		n, err := r.ReadAt(buf, offset)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			if n == 0 {
				break
			}
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "reading sample at %d", offset)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
