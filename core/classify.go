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
	"sort"

	"github.com/Comcast/sage/match"
)

// Classifier decides what role a fact plays.
//
// Classification only looks at the fact's structure.  See RoleSchema.
type Classifier struct {
	schemas []RoleSchema
}

// NewClassifier makes a Classifier.  Schemas for roles that aren't
// given come from DefaultSchemas.
func NewClassifier(schemas ...RoleSchema) (*Classifier, error) {
	byRole := make(map[Role]RoleSchema, 3)
	for _, s := range DefaultSchemas() {
		byRole[s.Role] = s
	}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		byRole[s.Role] = s
	}
	c := &Classifier{}
	for _, r := range []Role{QuestionRole, AnswerRole, RecommendationRole} {
		c.schemas = append(c.schemas, byRole[r])
	}
	return c, nil
}

// DefaultClassifier uses DefaultSchemas.
var DefaultClassifier, _ = NewClassifier()

// Schema returns the schema for the given role.
func (c *Classifier) Schema(r Role) (RoleSchema, bool) {
	for _, s := range c.schemas {
		if s.Role == r {
			return s, true
		}
	}
	return RoleSchema{}, false
}

// Classified is a fact along with its role and typed fields.
//
// At most one of Question, Answer, and Recommendation is set.
type Classified struct {
	Role           Role
	Fact           Fact
	Question       *Question
	Answer         *Answer
	Recommendation *Recommendation
}

func signatureHit(s RoleSchema, f Fact) (string, bool) {
	for _, k := range s.Signature {
		if _, have := f[k]; have {
			return k, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]interface{}) []string {
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

// Classify determines the fact's role and extracts its fields.
//
// A fact that isn't a candidate for any role is classified as Other.
// A fact that's a candidate for more than one role, or that doesn't
// have what its role needs, results in a *MalformedFact.
func (c *Classifier) Classify(f Fact) (*Classified, error) {
	var (
		schema RoleSchema
		n      int
	)
	for _, s := range c.schemas {
		k, hit := signatureHit(s, f)
		if !hit {
			continue
		}
		if 0 < n {
			return nil, &MalformedFact{
				Role:   schema.Role,
				Field:  k,
				Fact:   f,
				Reason: "also marks the fact as a " + s.Role.String(),
			}
		}
		schema = s
		n++
	}
	if n == 0 {
		return &Classified{Role: Other, Fact: f}, nil
	}

	bs, err := c.bind(schema, f)
	if err != nil {
		return nil, err
	}

	cl := &Classified{Role: schema.Role, Fact: f}
	switch schema.Role {
	case QuestionRole:
		cl.Question, err = questionFrom(schema, f, bs)
	case AnswerRole:
		cl.Answer, err = answerFrom(schema, f, bs)
	case RecommendationRole:
		var key string
		if key, err = stringField(schema, f, bs, "?systemKey"); err == nil {
			cl.Recommendation = &Recommendation{SystemKey: key}
		}
	}
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// bind matches the fact against the schema's pattern, reporting the
// first (by name) property that's missing or doesn't match.
func (c *Classifier) bind(s RoleSchema, f Fact) (match.Bindings, error) {
	keys := sortedKeys(s.Pattern)
	if missing := match.Missing(keys, s.Pattern, f); 0 < len(missing) {
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  missing[0],
			Fact:   f,
			Reason: "is missing",
		}
	}
	bss, err := match.Match(s.Pattern, f, nil)
	if err != nil {
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  failing(s, keys, f),
			Fact:   f,
			Reason: "can't be matched: " + err.Error(),
		}
	}
	if len(bss) == 0 {
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  failing(s, keys, f),
			Fact:   f,
			Reason: "doesn't match the " + s.Role.String() + " pattern",
		}
	}
	return bss[0], nil
}

// failing returns the first of the keys whose property doesn't match
// on its own.
func failing(s RoleSchema, keys []string, f Fact) string {
	for _, k := range keys {
		if bss, err := match.Match(s.Pattern[k], f[k], nil); err != nil || len(bss) == 0 {
			return k
		}
	}
	if 0 < len(keys) {
		return keys[0]
	}
	return ""
}

// fieldFor returns the property in the schema's pattern that binds
// the variable.
func fieldFor(s RoleSchema, v string) string {
	for _, k := range sortedKeys(s.Pattern) {
		if str, is := s.Pattern[k].(string); is && "?"+Unquestion(Unquestion(str)) == v {
			return k
		}
	}
	return Unquestion(v)
}

func stringField(s RoleSchema, f Fact, bs match.Bindings, v string) (string, error) {
	x, _ := bs[v]
	str, is := x.(string)
	if !is || str == "" {
		return "", &MalformedFact{
			Role:   s.Role,
			Field:  fieldFor(s, v),
			Fact:   f,
			Reason: fmt.Sprintf("should be a non-empty string (not %T)", x),
		}
	}
	return str, nil
}

func listField(s RoleSchema, f Fact, bs match.Bindings, v string) ([]string, error) {
	x, _ := bs[v]
	strs, ok := stringList(x)
	if !ok {
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  fieldFor(s, v),
			Fact:   f,
			Reason: fmt.Sprintf("should be a list of strings (not %T)", x),
		}
	}
	return strs, nil
}

func questionFrom(s RoleSchema, f Fact, bs match.Bindings) (*Question, error) {
	var (
		q   = &Question{}
		err error
		typ string
	)
	if q.ID, err = stringField(s, f, bs, "?id"); err != nil {
		return nil, err
	}
	if q.TextKey, err = stringField(s, f, bs, "?textKey"); err != nil {
		return nil, err
	}
	if typ, err = stringField(s, f, bs, "?type"); err != nil {
		return nil, err
	}
	switch QuestionType(typ) {
	case Single, Multi:
		q.Type = QuestionType(typ)
	default:
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  fieldFor(s, "?type"),
			Fact:   f,
			Reason: `should be "SINGLE" or "MULTI" (not "` + typ + `")`,
		}
	}
	if q.Options, err = listField(s, f, bs, "?options"); err != nil {
		return nil, err
	}
	if q.OptionIDs, err = listField(s, f, bs, "?optionIds"); err != nil {
		return nil, err
	}
	if len(q.Options) != len(q.OptionIDs) {
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  fieldFor(s, "?optionIds"),
			Fact:   f,
			Reason: fmt.Sprintf("has %d entries but there are %d options", len(q.OptionIDs), len(q.Options)),
		}
	}
	return q, nil
}

func answerFrom(s RoleSchema, f Fact, bs match.Bindings) (*Answer, error) {
	qid, err := stringField(s, f, bs, "?questionId")
	if err != nil {
		return nil, err
	}
	selected, err := listField(s, f, bs, "?selectedOptions")
	if err != nil {
		return nil, err
	}
	selected = dedup(selected)
	if len(selected) == 0 {
		return nil, &MalformedFact{
			Role:   s.Role,
			Field:  fieldFor(s, "?selectedOptions"),
			Fact:   f,
			Reason: "is empty",
		}
	}
	return &Answer{QuestionID: qid, Selected: selected}, nil
}

func dedup(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	acc := xs[:0]
	for _, x := range xs {
		if seen[x] {
			continue
		}
		seen[x] = true
		acc = append(acc, x)
	}
	return acc
}

// factFor builds a fact in the shape the role's schema wants.  vals
// maps the schema's variables to their values.
//
// Constants in the schema's pattern are carried over as they are.
func (c *Classifier) factFor(r Role, vals map[string]interface{}) Fact {
	s, _ := c.Schema(r)
	f := make(Fact, len(s.Pattern))
	for k, v := range s.Pattern {
		str, is := v.(string)
		if !is || !match.IsVariable(str) {
			f[k] = v
			continue
		}
		if x, have := vals["?"+Unquestion(Unquestion(str))]; have {
			f[k] = x
		}
	}
	return f
}

func list(xs []string) []interface{} {
	acc := make([]interface{}, len(xs))
	for i, x := range xs {
		acc[i] = x
	}
	return acc
}

// AnswerFact builds the fact that records an answer, in whatever shape
// the Answer schema wants.
func (c *Classifier) AnswerFact(questionID string, selected []string) Fact {
	return c.factFor(AnswerRole, map[string]interface{}{
		"?questionId":      questionID,
		"?selectedOptions": list(dedup(append([]string(nil), selected...))),
	})
}

// QuestionFact is AnswerFact for questions.
func (c *Classifier) QuestionFact(q *Question) Fact {
	return c.factFor(QuestionRole, map[string]interface{}{
		"?id":        q.ID,
		"?textKey":   q.TextKey,
		"?type":      string(q.Type),
		"?options":   list(q.Options),
		"?optionIds": list(q.OptionIDs),
	})
}

// RecommendationFact is AnswerFact for recommendations.
func (c *Classifier) RecommendationFact(systemKey string) Fact {
	return c.factFor(RecommendationRole, map[string]interface{}{
		"?systemKey": systemKey,
	})
}
