// -----------------------------------------------------------------------
// Branch Code Table - Static bank name to universal branch code mapping
// -----------------------------------------------------------------------

package banks

// canonicalBank is one entry of the fuzzy-lookup list. Order matters:
// exact-distance ties resolve to the first-listed entry.
type canonicalBank struct {
	Name string
	Code string
}

// canonicalBanks lists the official short names used for edit-distance
// matching, each with its universal branch code.
var canonicalBanks = []canonicalBank{
	{"Absa", "632005"},
	{"African Bank", "430000"},
	{"Bidvest Bank", "462005"},
	{"Capitec", "470010"},
	{"Discovery Bank", "679000"},
	{"First National Bank", "250655"},
	{"Investec", "580105"},
	{"Nedbank", "198765"},
	{"Postbank", "460005"},
	{"Sasfin Bank", "683000"},
	{"Standard Bank", "051001"},
	{"TymeBank", "678910"},
}

// bankAlias pairs one known spelling with its code. The list is ordered so
// substring matching is deterministic: the first containing entry wins.
// Keys are stored lowercased.
type bankAlias struct {
	Alias string
	Code  string
}

// bankAliases covers official names, abbreviations, legal-suffix variants,
// and spellings the sheet operators actually type. Read-only at runtime.
var bankAliases = []bankAlias{
	{"absa", "632005"},
	{"absa bank", "632005"},
	{"absa group", "632005"},
	{"amalgamated banks of south africa", "632005"},
	{"african bank", "430000"},
	{"african bank limited", "430000"},
	{"bidvest", "462005"},
	{"bidvest bank", "462005"},
	{"capitec", "470010"},
	{"capitec bank", "470010"},
	{"capitec bank limited", "470010"},
	{"discovery", "679000"},
	{"discovery bank", "679000"},
	{"fnb", "250655"},
	{"first national bank", "250655"},
	{"first national", "250655"},
	{"firstrand", "250655"},
	{"firstrand bank", "250655"},
	{"investec", "580105"},
	{"investec bank", "580105"},
	{"nedbank", "198765"},
	{"nedbank limited", "198765"},
	{"ned bank", "198765"},
	{"postbank", "460005"},
	{"post bank", "460005"},
	{"south african postbank", "460005"},
	{"sasfin", "683000"},
	{"sasfin bank", "683000"},
	{"standard bank", "051001"},
	{"standard bank of south africa", "051001"},
	{"sbsa", "051001"},
	{"std bank", "051001"},
	{"tyme", "678910"},
	{"tymebank", "678910"},
	{"tyme bank", "678910"},
}

// aliasIndex supports O(1) exact lookups against the ordered alias list.
var aliasIndex = func() map[string]string {
	idx := make(map[string]string, len(bankAliases))
	for _, a := range bankAliases {
		if _, exists := idx[a.Alias]; !exists {
			idx[a.Alias] = a.Code
		}
	}
	return idx
}()
