/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements workspace persistence and indexing.
// The workspace manifest (storyteller.json) at the output root records per-scene processing
// state and the chosen layout sequence of every explainer. It is written transactionally with
// timestamped backups.
// The per-workspace SQLite index at <root>/.sty/index.sqlite holds searchable scene text,
// run history and script snapshots. Scene text is derived from the scripts and can be rebuilt.
package storage
