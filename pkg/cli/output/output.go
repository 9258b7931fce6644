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

// Package output provides functions to print informations on the terminal
// in a consistent manner
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/transfer"
)

// ShortHash returns the prefix of a content hash shown to the user
func ShortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}

	return hash
}

func position(b library.Book) string {
	if b.Paged {
		if b.TotalPages > 0 {
			return fmt.Sprintf("page %d of %d", b.LastPage, b.TotalPages)
		}
		return fmt.Sprintf("page %d", b.LastPage)
	}

	if b.XPointer == "" {
		return "not started"
	}
	return b.XPointer
}

// BookInfo prints a book information
func BookInfo(b library.Book) {
	log.Infof("title: %s\n", b.Title)
	if len(b.Authors) > 0 {
		log.Infof("authors: %s\n", strings.Join(b.Authors, ", "))
	}
	log.Infof("file: %s\n", b.FilePath)
	log.Infof("content hash: %s\n", b.ContentHash)
	log.Infof("position: %s\n", position(b))
	if b.Status != "" {
		log.Infof("status: %s\n", b.Status)
	}
	if b.UpdatedAt != 0 {
		log.Infof("updated at: %s\n", time.UnixMilli(b.UpdatedAt).Format("Jan 2, 2006 3:04pm (MST)"))
	}
}

// BookLine prints a book on one line
func BookLine(b library.Book) {
	log.Plainf("%s %s %s\n", log.ColorYellow.Sprint(ShortHash(b.ContentHash)), b.Title,
		log.ColorGray.Sprintf("(%s, %s)", b.FileName(), position(b)))
}

// Report prints the outcome of a bulk transfer. It returns an error if any item failed.
func Report(verb string, r transfer.Report) error {
	for _, res := range r.Results {
		if res.Err != nil && !res.Skipped {
			log.Errorf("%s: %s\n", res.Name, res.Err.Error())
		} else {
			log.Debug("%s: skipped %t\n", res.Name, res.Skipped)
		}
	}

	log.Successf("%s %d, skipped %d, failed %d\n", verb, r.Succeeded, r.Skipped, r.Failed)

	if r.Failed > 0 {
		return errors.Errorf("%d files failed", r.Failed)
	}

	return nil
}
