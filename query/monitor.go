package query

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(documentIds []string)
	AfterKeywordSearch(documentIds []string)
	SemanticAndKeywordHit(documentId string)
	SemanticHit(documentId string)
	KeywordHit(documentId string)
	Finish(results []*DocumentHit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                  {}
func (n *noopMonitor) AfterSemanticSearch(_ []string)  {}
func (n *noopMonitor) AfterKeywordSearch(_ []string)   {}
func (n *noopMonitor) SemanticAndKeywordHit(_ string)  {}
func (n *noopMonitor) SemanticHit(_ string)            {}
func (n *noopMonitor) KeywordHit(_ string)             {}
func (n *noopMonitor) Finish(_ []*DocumentHit)         {}
