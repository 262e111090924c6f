package db

type Conversation struct {
	ID           string
	PrincipalID  string
	Title        string
	MessagesJson string
	CreatedAt    string
	UpdatedAt    string
}

type Policy struct {
	ID             int64
	PrincipalID    string
	InsuredName    string
	InsuredAddress string
	Carrier        string
	Naic           string
	PolicyNumber   string
	Coverage       string
	LimitsJson     string
	EffectiveDate  string
	ExpirationDate string
}

type Certificate struct {
	ID             string
	PrincipalID    string
	ConversationID string
	Number         string
	HolderName     string
	HolderAddress  string
	Description    string
	CoveragesJson  string
	Document       string
	CreatedAt      string
	UpdatedAt      string
}
