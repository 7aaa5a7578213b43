// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store provides the polymorphic object store: a single document
// shape ({type, data, metadata, links}) persisted per organization, with
// soft deletion, cursor pagination, link traversal, and conditional
// field updates.
//
// Two implementations are provided. MongoPartitions backs each
// organization with its own MongoDB database; MemoryPartitions keeps
// everything in process and is used by tests and local development.
// Both honor the same validation rules and cursor format.
package store
