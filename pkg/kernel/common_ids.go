package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TranscriptID string

func NewTranscriptID(id string) TranscriptID { return TranscriptID(id) }
func (t TranscriptID) String() string        { return string(t) }
func (t TranscriptID) IsEmpty() bool         { return string(t) == "" }
