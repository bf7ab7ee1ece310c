package keychain

// Security framework result codes the store names. Anything else is passed
// through untouched as a native failure.
const (
	StatusSuccess               Status = 0      // errSecSuccess
	StatusUnimplemented         Status = -4     // errSecUnimplemented
	StatusParam                 Status = -50    // errSecParam
	StatusAllocate              Status = -108   // errSecAllocate
	StatusUserCanceled          Status = -128   // errSecUserCanceled
	StatusNotAvailable          Status = -25291 // errSecNotAvailable
	StatusAuthFailed            Status = -25293 // errSecAuthFailed
	StatusDuplicateItem         Status = -25299 // errSecDuplicateItem
	StatusItemNotFound          Status = -25300 // errSecItemNotFound
	StatusInteractionNotAllowed Status = -25308 // errSecInteractionNotAllowed
	StatusDecode                Status = -26275 // errSecDecode
	StatusMissingEntitlement    Status = -34018 // errSecMissingEntitlement
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeNotFound
	outcomeFailure
)

type statusEntry struct {
	outcome outcome
	text    string
}

// statusTable is the closed mapping from native codes to outcomes. Codes
// missing from it fall back to outcomeFailure.
var statusTable = map[Status]statusEntry{
	StatusSuccess:               {outcomeOK, "success"},
	StatusItemNotFound:          {outcomeNotFound, "the specified item could not be found in the keychain"},
	StatusUnimplemented:         {outcomeFailure, "function or operation not implemented"},
	StatusParam:                 {outcomeFailure, "one or more parameters passed to a function were not valid"},
	StatusAllocate:              {outcomeFailure, "failed to allocate memory"},
	StatusUserCanceled:          {outcomeFailure, "user canceled the operation"},
	StatusNotAvailable:          {outcomeFailure, "no keychain is available"},
	StatusAuthFailed:            {outcomeFailure, "the user name or passphrase you entered is not correct"},
	StatusDuplicateItem:         {outcomeFailure, "the specified item already exists in the keychain"},
	StatusInteractionNotAllowed: {outcomeFailure, "user interaction is not allowed"},
	StatusDecode:                {outcomeFailure, "unable to decode the provided data"},
	StatusMissingEntitlement:    {outcomeFailure, "a required entitlement isn't present"},
}

func classify(status Status) outcome {
	if e, ok := statusTable[status]; ok {
		return e.outcome
	}
	return outcomeFailure
}

// describe prefers the platform's own message and falls back to the table.
func describe(n Native, status Status) string {
	if msg := n.Message(status); msg != "" {
		return msg
	}
	if e, ok := statusTable[status]; ok {
		return e.text
	}
	return "unrecognised keychain status"
}
