// -----------------------------------------------------------------------
// Sheet - Wire types for the tabular data source web app
// -----------------------------------------------------------------------

package models

// SheetRow is one row of the source sheet as returned by the web app:
// the 1-based row number plus a column-letter -> cell-text map.
type SheetRow struct {
	Row  int               `json:"row"`
	Data map[string]string `json:"data"`
}

// Cell returns the trimmed value of the given column letter, or "" when
// the column is absent.
func (r *SheetRow) Cell(column string) string {
	if r.Data == nil {
		return ""
	}
	return r.Data[column]
}

// SheetRowsResponse is the web app's reply to a list request.
type SheetRowsResponse struct {
	Rows []SheetRow `json:"rows"`
}

// SheetRowResponse is the web app's reply to a getRow request.
type SheetRowResponse struct {
	Row  int               `json:"row"`
	Data map[string]string `json:"data"`
}

// SheetUpdateResponse is the web app's reply to a mutation request.
type SheetUpdateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
