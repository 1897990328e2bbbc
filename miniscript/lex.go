package miniscript

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/txscript"
)

// tokenKind is the closed set of script tokens a miniscript can compile to.
type tokenKind uint8

const (
	tokBoolAnd tokenKind = iota
	tokBoolOr
	tokAdd
	tokEqual
	tokCheckSig
	tokCheckMultiSig
	tokCheckSequenceVerify
	tokCheckLockTimeVerify
	tokFromAltStack
	tokToAltStack
	tokDup
	tokIf
	tokIfDup
	tokNotIf
	tokElse
	tokEndIf
	tokZeroNotEqual
	tokSize
	tokSwap
	tokVerify
	tokRipemd160
	tokHash160
	tokSha256
	tokHash256
	tokNum
	tokHash20
	tokHash32
	tokPubKey
)

var tokenNames = [...]string{
	tokBoolAnd:             "BOOLAND",
	tokBoolOr:              "BOOLOR",
	tokAdd:                 "ADD",
	tokEqual:               "EQUAL",
	tokCheckSig:            "CHECKSIG",
	tokCheckMultiSig:       "CHECKMULTISIG",
	tokCheckSequenceVerify: "CHECKSEQUENCEVERIFY",
	tokCheckLockTimeVerify: "CHECKLOCKTIMEVERIFY",
	tokFromAltStack:        "FROMALTSTACK",
	tokToAltStack:          "TOALTSTACK",
	tokDup:                 "DUP",
	tokIf:                  "IF",
	tokIfDup:               "IFDUP",
	tokNotIf:               "NOTIF",
	tokElse:                "ELSE",
	tokEndIf:               "ENDIF",
	tokZeroNotEqual:        "0NOTEQUAL",
	tokSize:                "SIZE",
	tokSwap:                "SWAP",
	tokVerify:              "VERIFY",
	tokRipemd160:           "RIPEMD160",
	tokHash160:             "HASH160",
	tokSha256:              "SHA256",
	tokHash256:             "HASH256",
	tokNum:                 "number",
	tokHash20:              "20 byte push",
	tokHash32:              "32 byte push",
	tokPubKey:              "33 byte push",
}

func (k tokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("token(%d)", uint8(k))
}

// token is one lexed script element.  offset is the byte index of the
// opcode it came from.
type token struct {
	kind   tokenKind
	num    uint32
	data   []byte
	offset int
}

func (t token) String() string {
	switch t.kind {
	case tokNum:
		return fmt.Sprintf("<%d>", t.num)
	case tokHash20, tokHash32, tokPubKey:
		return "<" + hex.EncodeToString(t.data) + ">"
	}
	return t.kind.String()
}

// simpleTokens maps opcodes to the token sequence they lex to, in script
// order.
var simpleTokens = map[byte][]tokenKind{
	txscript.OP_BOOLAND:             {tokBoolAnd},
	txscript.OP_BOOLOR:              {tokBoolOr},
	txscript.OP_ADD:                 {tokAdd},
	txscript.OP_EQUAL:               {tokEqual},
	txscript.OP_EQUALVERIFY:         {tokEqual, tokVerify},
	txscript.OP_CHECKSIG:            {tokCheckSig},
	txscript.OP_CHECKSIGVERIFY:      {tokCheckSig, tokVerify},
	txscript.OP_CHECKMULTISIG:       {tokCheckMultiSig},
	txscript.OP_CHECKMULTISIGVERIFY: {tokCheckMultiSig, tokVerify},
	txscript.OP_CHECKSEQUENCEVERIFY: {tokCheckSequenceVerify},
	txscript.OP_CHECKLOCKTIMEVERIFY: {tokCheckLockTimeVerify},
	txscript.OP_FROMALTSTACK:        {tokFromAltStack},
	txscript.OP_TOALTSTACK:          {tokToAltStack},
	txscript.OP_DUP:                 {tokDup},
	txscript.OP_IF:                  {tokIf},
	txscript.OP_IFDUP:               {tokIfDup},
	txscript.OP_NOTIF:               {tokNotIf},
	txscript.OP_ELSE:                {tokElse},
	txscript.OP_ENDIF:               {tokEndIf},
	txscript.OP_0NOTEQUAL:           {tokZeroNotEqual},
	txscript.OP_SIZE:                {tokSize},
	txscript.OP_SWAP:                {tokSwap},
	txscript.OP_VERIFY:              {tokVerify},
	txscript.OP_RIPEMD160:           {tokRipemd160},
	txscript.OP_HASH160:             {tokHash160},
	txscript.OP_SHA256:              {tokSha256},
	txscript.OP_HASH256:             {tokHash256},
}

// maxScriptNumLen is the longest push read as a number: lock times are
// unsigned 32 bit values, which need up to 5 bytes as script numbers.
const maxScriptNumLen = 5

// lex splits script into tokens and returns them in reverse script order,
// so the last token of the script comes first.
func lex(script []byte) ([]token, error) {
	var tokens []token
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	offset := 0
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		data := tokenizer.Data()

		switch {
		case op == txscript.OP_VERIFY && len(tokens) > 0 &&
			canCollapseVerify(tokens[len(tokens)-1]):

			return nil, parseError(ErrNonMinimalVerify, offset,
				fmt.Sprintf("%v VERIFY must be written as "+
					"%vVERIFY", tokens[len(tokens)-1].kind,
					tokens[len(tokens)-1].kind))

		case simpleTokens[op] != nil:
			for _, kind := range simpleTokens[op] {
				tokens = append(tokens, token{
					kind: kind, offset: offset,
				})
			}

		case op == txscript.OP_0:
			tokens = append(tokens, token{kind: tokNum, offset: offset})

		case op >= txscript.OP_1 && op <= txscript.OP_16:
			tokens = append(tokens, token{
				kind:   tokNum,
				num:    uint32(op - (txscript.OP_1 - 1)),
				offset: offset,
			})

		case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_75:
			tok, err := lexPush(data, offset)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)

		case op == txscript.OP_PUSHDATA1 || op == txscript.OP_PUSHDATA2 ||
			op == txscript.OP_PUSHDATA4:

			return nil, parseError(ErrInvalidPush, offset, fmt.Sprintf(
				"push of %d bytes is not a key, hash or number",
				len(data)))

		default:
			asm, _ := txscript.DisasmString(
				script[offset:tokenizer.ByteIndex()])
			return nil, parseError(ErrInvalidOpcode, offset,
				fmt.Sprintf("opcode %s is not allowed in "+
					"miniscript", asm))
		}
		offset = int(tokenizer.ByteIndex())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, parseError(ErrInvalidPush, offset, err.Error())
	}

	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
	return tokens, nil
}

// canCollapseVerify reports whether a following OP_VERIFY should have been
// merged into the opcode of t.
func canCollapseVerify(t token) bool {
	switch t.kind {
	case tokEqual, tokCheckSig, tokCheckMultiSig:
		return true
	}
	return false
}

// lexPush classifies a direct data push.
func lexPush(data []byte, offset int) (token, error) {
	switch len(data) {
	case 20:
		return token{kind: tokHash20, data: data, offset: offset}, nil
	case 32:
		return token{kind: tokHash32, data: data, offset: offset}, nil
	case 33:
		return token{kind: tokPubKey, data: data, offset: offset}, nil
	}

	if len(data) > maxScriptNumLen {
		return token{}, parseError(ErrInvalidPush, offset, fmt.Sprintf(
			"push of %d bytes is not a key, hash or number",
			len(data)))
	}

	// Small values must use OP_0 through OP_16.
	if len(data) == 1 && data[0] <= 16 {
		return token{}, parseError(ErrInvalidPush, offset, fmt.Sprintf(
			"number %d is not minimally pushed", data[0]))
	}
	n, err := txscript.MakeScriptNum(data, true, maxScriptNumLen)
	if err != nil {
		return token{}, parseError(ErrInvalidPush, offset, fmt.Sprintf(
			"invalid script number %x: %v", data, err))
	}
	if n < 0 || int64(n) > math.MaxUint32 {
		return token{}, parseError(ErrInvalidPush, offset, fmt.Sprintf(
			"script number %d is out of range", int64(n)))
	}
	return token{kind: tokNum, num: uint32(n), offset: offset}, nil
}
