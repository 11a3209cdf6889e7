package application

import (
	"encoding/json"
	"strings"

	"github.com/dfryer1193/blogspace/blog/domain"
)

// requiredFields is the fixed order used when reporting missing fields.
var requiredFields = []string{"title", "content", "author", "category"}

// ValidateCreate checks a create payload. It never touches storage.
func ValidateCreate(in *CreatePostInput) error {
	return missingFields(in.Title, in.Content, in.Author, in.Category)
}

// ValidateUpdate checks an update payload: the create rules plus at least one tag.
func ValidateUpdate(in *UpdatePostInput) error {
	if err := missingFields(in.Title, in.Content, in.Author, in.Category); err != nil {
		return err
	}
	if len(in.Tags) == 0 {
		return domain.NewValidationError("at least one tag is required")
	}
	if in.Version < 0 {
		return domain.NewValidationError("version must not be negative")
	}
	return nil
}

func missingFields(title, content, author, category string) error {
	values := []string{title, content, author, category}

	var missing []string
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, requiredFields[i])
		}
	}
	if len(missing) > 0 {
		return domain.NewMissingFieldsError(missing)
	}
	return nil
}

// ParseTags decodes the JSON text of the tags form field.
// Malformed JSON is an error; well-formed JSON that is not an array of strings yields no tags.
func ParseTags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &domain.MalformedPayloadError{Field: "tags", Err: err}
	}

	items, ok := decoded.([]any)
	if !ok {
		return []string{}, nil
	}

	tags := make([]string, 0, len(items))
	for _, item := range items {
		tag, ok := item.(string)
		if !ok {
			return []string{}, nil
		}
		tags = append(tags, tag)
	}

	return normalizeTags(tags), nil
}

// normalizeTags trims each tag and drops blanks, keeping display order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
