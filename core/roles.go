/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package core

import (
	"fmt"
	"strings"

	"github.com/Comcast/sage/match"
)

// Role is what a fact does in a session.
type Role int

const (
	// Other facts are engine-internal.  The session ignores them.
	Other Role = iota
	QuestionRole
	AnswerRole
	RecommendationRole
)

func (r Role) String() string {
	switch r {
	case QuestionRole:
		return "Question"
	case AnswerRole:
		return "Answer"
	case RecommendationRole:
		return "Recommendation"
	default:
		return "Other"
	}
}

// ParseRole is the inverse of Role.String, ignoring case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "question":
		return QuestionRole, nil
	case "answer":
		return AnswerRole, nil
	case "recommendation":
		return RecommendationRole, nil
	case "other":
		return Other, nil
	}
	return Other, fmt.Errorf("unknown role %q", s)
}

type QuestionType string

const (
	Single QuestionType = "SINGLE"
	Multi  QuestionType = "MULTI"
)

// Question asks the user to pick one (Single) or more (Multi) options.
//
// Options are text keys.  OptionIDs are what Answers carry.  The two
// slices are positionally paired.
type Question struct {
	ID        string       `json:"id"`
	TextKey   string       `json:"textKey"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options"`
	OptionIDs []string     `json:"optionIds"`
}

// Answer records the options selected for a question.
//
// Selected has set semantics: duplicates are dropped, and the first
// occurrence determines the order.
type Answer struct {
	QuestionID string   `json:"questionId"`
	Selected   []string `json:"selectedOptions"`
}

// Recommendation is a result.  SystemKey is a text key.
type Recommendation struct {
	SystemKey string `json:"systemKey"`
}

// RoleSchema says how to recognize facts that play a Role.
//
// A fact that has any of the Signature properties is a candidate for
// the Role.  A candidate must then match the Pattern.  Variables in
// the Pattern name the fields that the Role needs, so a knowledge
// base that spells things differently can say
//
//	{"qid": "?id", "label": "?textKey", ...}
type RoleSchema struct {
	Role      Role                   `json:"-" yaml:"-"`
	Signature []string               `json:"signature" yaml:"signature"`
	Pattern   map[string]interface{} `json:"pattern" yaml:"pattern"`
}

// roleVars are the variables each Role's Pattern must bind.
var roleVars = map[Role][]string{
	QuestionRole:       {"?id", "?textKey", "?type", "?options", "?optionIds"},
	AnswerRole:         {"?questionId", "?selectedOptions"},
	RecommendationRole: {"?systemKey"},
}

// Validate checks that the Pattern binds every variable the Role
// needs.
func (s RoleSchema) Validate() error {
	vars, have := roleVars[s.Role]
	if !have {
		return fmt.Errorf("no schema for role %s", s.Role)
	}
	if len(s.Signature) == 0 {
		return fmt.Errorf("%s schema has no signature", s.Role)
	}
	found := make(map[string]bool, len(vars))
	for _, v := range s.Pattern {
		if str, is := v.(string); is && match.IsVariable(str) {
			found["?"+strings.TrimLeft(str, "?")] = true
		}
	}
	for _, v := range vars {
		if !found[v] {
			return fmt.Errorf("%s schema pattern doesn't bind %s", s.Role, v)
		}
	}
	return nil
}

// DefaultSchemas returns the stock schemas.
func DefaultSchemas() []RoleSchema {
	return []RoleSchema{
		{
			Role:      QuestionRole,
			Signature: []string{"textKey", "optionIds"},
			Pattern: map[string]interface{}{
				"id":        "?id",
				"textKey":   "?textKey",
				"type":      "?type",
				"options":   "?options",
				"optionIds": "?optionIds",
			},
		},
		{
			Role:      AnswerRole,
			Signature: []string{"questionId", "selectedOptions"},
			Pattern: map[string]interface{}{
				"questionId":      "?questionId",
				"selectedOptions": "?selectedOptions",
			},
		},
		{
			Role:      RecommendationRole,
			Signature: []string{"systemKey"},
			Pattern: map[string]interface{}{
				"systemKey": "?systemKey",
			},
		},
	}
}
