package scoring

import "strings"

// lookalikeSubstitutions are the homoglyph swaps applied to brand tokens
var lookalikeSubstitutions = []struct {
	from, to byte
}{
	{'o', '0'},
	{'l', '1'},
	{'e', '3'},
	{'a', '4'},
}

var lookalikeSuffixes = []string{"-login", "-verify", "-secure", "-account", "-support", "-update"}

var lookalikePrefixes = []string{"secure-", "login-", "verify-", "my-"}

// brandLookalikes holds the precomputed variants for one brand token
type brandLookalikes struct {
	brand    string
	legit    []string
	variants []string
}

// LookalikeVariants returns the lookalike tokens generated for brand: every
// single-position and whole-word homoglyph substitution, then affixed forms.
// Order is stable and duplicates are removed.
func LookalikeVariants(brand string) []string {
	brand = strings.ToLower(strings.TrimSpace(brand))
	if brand == "" {
		return nil
	}

	seen := map[string]bool{brand: true}
	var variants []string
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	for _, sub := range lookalikeSubstitutions {
		if strings.IndexByte(brand, sub.from) < 0 {
			continue
		}
		for i := 0; i < len(brand); i++ {
			if brand[i] == sub.from {
				add(brand[:i] + string(sub.to) + brand[i+1:])
			}
		}
		add(strings.ReplaceAll(brand, string(sub.from), string(sub.to)))
	}

	for _, suffix := range lookalikeSuffixes {
		add(brand + suffix)
	}
	for _, prefix := range lookalikePrefixes {
		add(prefix + brand)
	}

	return variants
}

func buildLookalikes(brands []string) []brandLookalikes {
	out := make([]brandLookalikes, 0, len(brands))
	for _, b := range brands {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		out = append(out, brandLookalikes{
			brand:    b,
			legit:    []string{b + ".com", b + ".org"},
			variants: LookalikeVariants(b),
		})
	}
	return out
}

// matchTyposquat returns the first brand with a lookalike in target that is not
// also on its legitimate domain
func matchTyposquat(target string, lookalikes []brandLookalikes) (brand, variant string, ok bool) {
	target = strings.ToLower(target)

	for _, bl := range lookalikes {
		if containsAny(target, bl.legit) {
			continue
		}
		for _, v := range bl.variants {
			if strings.Contains(target, v) {
				return bl.brand, v, true
			}
		}
	}
	return "", "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
