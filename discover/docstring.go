package discover

import "strings"

// Doc is the documentation extracted from a method docstring.
type Doc struct {
	Summary     string
	Description string
	Params      map[string]string
	Returns     string
}

// ParseDoc splits a docstring into summary, description and field lists.
//
// The first paragraph is the summary and the remaining paragraphs form the
// description. Field lines document parameters and the result:
//
//	Add two integers.
//
//	:param a: The first addend.
//	:param b: The second addend.
//	:return: The sum.
//
// Lines directly following a field continue it until a blank line.
func ParseDoc(doc string) Doc {
	out := Doc{Params: map[string]string{}}
	var (
		body []string
		cont func(string)
	)
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, ":param "):
			field, text, _ := strings.Cut(strings.TrimPrefix(line, ":param "), ":")
			words := strings.Fields(field)
			if len(words) == 0 {
				cont = nil
				continue
			}
			name := words[len(words)-1]
			out.Params[name] = strings.TrimSpace(text)
			cont = func(more string) { out.Params[name] += " " + more }
		case strings.HasPrefix(line, ":return:"), strings.HasPrefix(line, ":returns:"):
			_, text, _ := strings.Cut(line[1:], ":")
			out.Returns = strings.TrimSpace(text)
			cont = func(more string) { out.Returns += " " + more }
		case strings.HasPrefix(line, ":"):
			// :raises and :type lines are not published.
			cont = nil
		case line == "":
			cont = nil
			body = append(body, line)
		case cont != nil:
			cont(line)
		default:
			body = append(body, line)
		}
	}

	paragraphs := splitParagraphs(body)
	if len(paragraphs) > 0 {
		out.Summary = paragraphs[0]
		out.Description = strings.Join(paragraphs[1:], "\n\n")
	}
	return out
}

func splitParagraphs(lines []string) []string {
	var (
		out     []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range lines {
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}
