package riot

// Account is the Account-v1 by-riot-id response.
type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Match is the Match-v5 payload, trimmed to the fields the pipeline
// projects.
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // puuids of all ten players
}

type MatchInfo struct {
	GameCreation int64         `json:"gameCreation"`
	GameDuration int           `json:"gameDuration"` // seconds
	PlatformID   string        `json:"platformId"`
	QueueID      int           `json:"queueId"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	PUUID                string `json:"puuid"`
	ChampionName         string `json:"championName"`
	IndividualPosition   string `json:"individualPosition"`
	Win                  bool   `json:"win"`
	Kills                int    `json:"kills"`
	Deaths               int    `json:"deaths"`
	Assists              int    `json:"assists"`
	TotalMinionsKilled   int    `json:"totalMinionsKilled"`
	VisionScore          int    `json:"visionScore"`
	WardsPlaced          int    `json:"wardsPlaced"`
	WardsKilled          int    `json:"wardsKilled"`
	TeamEarlySurrendered bool   `json:"teamEarlySurrendered"`
	FirstBloodKill       bool   `json:"firstBloodKill"`

	AllInPings         int `json:"allInPings"`
	AssistMePings      int `json:"assistMePings"`
	BasicPings         int `json:"basicPings"`
	CommandPings       int `json:"commandPings"`
	DangerPings        int `json:"dangerPings"`
	EnemyMissingPings  int `json:"enemyMissingPings"`
	EnemyVisionPings   int `json:"enemyVisionPings"`
	GetBackPings       int `json:"getBackPings"`
	HoldPings          int `json:"holdPings"`
	NeedVisionPings    int `json:"needVisionPings"`
	OnMyWayPings       int `json:"onMyWayPings"`
	PushPings          int `json:"pushPings"`
	VisionClearedPings int `json:"visionClearedPings"`
}
