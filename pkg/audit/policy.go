package audit

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// AdminPolicyName is the AWS managed full-administrator policy
	AdminPolicyName = "AdministratorAccess"

	wildcard = "*"
)

// stringSet accepts policy document fields that IAM emits as either a
// single JSON string or a list of strings. Shape is normalized at decode
// time so matching logic never branches on it.
type stringSet []string

func (s *stringSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = stringSet{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = stringSet(many)
	return nil
}

func (s stringSet) contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

type policyStatement struct {
	Effect   string    `json:"Effect"`
	Action   stringSet `json:"Action"`
	Resource stringSet `json:"Resource"`
}

// statementList accepts the Statement field as a single object or a list
type statementList []policyStatement

func (l *statementList) UnmarshalJSON(data []byte) error {
	var single policyStatement
	if err := json.Unmarshal(data, &single); err == nil {
		*l = statementList{single}
		return nil
	}

	var many []policyStatement
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = statementList(many)
	return nil
}

type policyDocument struct {
	Version   string        `json:"Version"`
	Statement statementList `json:"Statement"`
}

// documentGrantsFullAccess reports whether any Allow statement in the
// document permits the universal wildcard on both actions and resources.
// A partial wildcard such as "s3:*" does not count.
func documentGrantsFullAccess(doc string) (bool, error) {
	var pd policyDocument
	if err := json.Unmarshal([]byte(doc), &pd); err != nil {
		return false, fmt.Errorf("parsing policy document: %w", err)
	}

	for _, st := range pd.Statement {
		if !strings.EqualFold(st.Effect, "Allow") {
			continue
		}
		if st.Action.contains(wildcard) && st.Resource.contains(wildcard) {
			return true, nil
		}
	}

	return false, nil
}
