/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"
)

func TestScriptSnapshots(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	if last, err := GetLatestScriptSnapshot(ctx, root, "ocean"); err != nil || !last.TS.IsZero() {
		t.Fatalf("empty latest: %+v %v", last, err)
	}
	changed, err := SnapshotIfChanged(ctx, root, "ocean", "v1")
	if err != nil || !changed {
		t.Fatalf("first snapshot: %v %v", changed, err)
	}
	changed, _ = SnapshotIfChanged(ctx, root, "ocean", "v1")
	if changed {
		t.Fatalf("unchanged text should not snapshot")
	}
	base := time.Now().Add(time.Hour)
	for i, txt := range []string{"v2", "v3", "v4"} {
		if err := SaveScriptSnapshot(ctx, root, "ocean", txt, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := SaveScriptSnapshot(ctx, root, "bees", "b1", base); err != nil {
		t.Fatal(err)
	}
	last, err := GetLatestScriptSnapshot(ctx, root, "ocean")
	if err != nil || last.Text != "v4" {
		t.Fatalf("latest = %+v, %v", last, err)
	}
	list, _ := ListScriptSnapshots(ctx, root, "ocean", 10)
	if len(list) != 4 || list[0].Text != "v4" || list[3].Text != "v1" {
		t.Fatalf("list: %+v", list)
	}
	n, err := PruneOldScriptSnapshots(ctx, root, "ocean", 2)
	if err != nil || n != 2 {
		t.Fatalf("prune removed %d, %v", n, err)
	}
	list, _ = ListScriptSnapshots(ctx, root, "bees", 10)
	if len(list) != 1 {
		t.Fatalf("prune touched another explainer: %+v", list)
	}
}
