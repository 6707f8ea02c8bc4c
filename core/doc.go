/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package core provides the session loop for rule-driven
// questionnaires.
//
// A Session owns a Store of facts.  Each fact is a JSON-ish record
// (a map[string]interface{}).  An Engine, which the package treats
// as a black box, may assert and retract facts when it Fires.  After
// every Fire, a Classifier looks at the shape of each fact to decide
// whether it's a Question, an Answer, a Recommendation, or something
// else that the engine uses internally.
//
// The primary type is Session, and the primary methods are Advance,
// Submit, and Restart.  Advance fires the engine once.  If some
// Question hasn't been answered, the first such Question (in store
// order) is the pending question.  Otherwise the session is
// Finalized, and the Outcome carries every Recommendation in store
// order.
//
// Submit adds an Answer fact and then calls Advance.  Restart asks
// the engine for its initial facts, resets the store, and calls
// Advance.
//
// A Session isn't safe for concurrent use.  Callers that share a
// Session across goroutines need to serialize access to it.
package core
