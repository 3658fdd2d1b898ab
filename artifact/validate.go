package artifact

import "fmt"

// ValidateOCRDocument enforces the structural contract of the OCR
// artifact beyond what the JSON schema can express: token identifiers
// unique across the document, page numbers 1-indexed and strictly
// increasing, every token agreeing with its page's number, and
// confidences in range. The first violation is reported with the
// offending identifier; callers classify the error as InputMalformed.
func ValidateOCRDocument(doc *OCRDocument) error {
	if doc.DocID == "" {
		return fmt.Errorf("doc_id is empty")
	}
	seen := make(map[string]string, 64)
	lastPage := 0
	for _, page := range doc.Pages {
		if page.PageNum < 1 {
			return fmt.Errorf("page_num %d is not 1-indexed", page.PageNum)
		}
		if page.PageNum <= lastPage {
			return fmt.Errorf("page_num %d out of order after %d", page.PageNum, lastPage)
		}
		lastPage = page.PageNum
		if page.Width < 0 || page.Height < 0 {
			return fmt.Errorf("page %d has negative dimensions %dx%d", page.PageNum, page.Width, page.Height)
		}
		for _, tok := range page.Tokens {
			if tok.TokenID == "" {
				return fmt.Errorf("page %d contains a token with empty token_id", page.PageNum)
			}
			if prev, dup := seen[tok.TokenID]; dup {
				return fmt.Errorf("duplicate token_id %s (first seen in %s)", tok.TokenID, prev)
			}
			seen[tok.TokenID] = fmt.Sprintf("page %d", page.PageNum)
			if tok.PageNum != page.PageNum {
				return fmt.Errorf("token %s has page_num %d but belongs to page %d", tok.TokenID, tok.PageNum, page.PageNum)
			}
			if tok.Confidence != nil && (*tok.Confidence < 0 || *tok.Confidence > 1) {
				return fmt.Errorf("token %s has confidence %v outside [0,1]", tok.TokenID, *tok.Confidence)
			}
		}
	}
	return nil
}
