package domain

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CategoryList stores a sorted, de-duplicated set of categories as a
// comma-joined TEXT column ("2,4,5").
type CategoryList []Category

// NewCategoryList returns the sorted union of the given categories without duplicates.
// Non-positive codes are dropped.
func NewCategoryList(categories ...Category) CategoryList {
	if len(categories) == 0 {
		return CategoryList{}
	}

	seen := make(map[Category]struct{}, len(categories))
	out := make(CategoryList, 0, len(categories))
	for _, c := range categories {
		if c <= 0 {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether c is part of the list.
func (l CategoryList) Contains(c Category) bool {
	for _, existing := range l {
		if existing == c {
			return true
		}
	}
	return false
}

// String renders the list the way it is persisted and sent to the reporting API.
func (l CategoryList) String() string {
	if len(l) == 0 {
		return ""
	}
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, ",")
}

// ParseCategoryList parses the comma-joined representation produced by String.
func ParseCategoryList(raw string) (CategoryList, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategoryList{}, nil
	}

	parts := strings.Split(raw, ",")
	parsed := make([]Category, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("domain.CategoryList: invalid code %q: %w", part, err)
		}
		parsed = append(parsed, Category(n))
	}
	return NewCategoryList(parsed...), nil
}

// Value implements driver.Valuer so CategoryList can be stored as TEXT.
func (l CategoryList) Value() (driver.Value, error) {
	return l.String(), nil
}

// Scan implements sql.Scanner to hydrate the CategoryList from the database.
func (l *CategoryList) Scan(value any) error {
	if value == nil {
		*l = CategoryList{}
		return nil
	}

	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("domain.CategoryList: unsupported type %T", value)
	}

	parsed, err := ParseCategoryList(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// GormDataType pins the column type regardless of dialect.
func (CategoryList) GormDataType() string {
	return "text"
}
