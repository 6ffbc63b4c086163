package game

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"CProject/tools/keys"
)

// 交易与指令的二进制布局。布局是机械的 语义都在编排层：
//
//	tx      = ver(1) | pubkey(32) | nonce(8 BE) | payload | sig(64)
//	payload = op(1) | op 专属字段
//
// 签名覆盖 ver..payload。

const txVersion byte = 1

type opCode byte

const (
	opRegister  opCode = 1
	opDeposit   opCode = 2
	opStartGame opCode = 3
	opMove      opCode = 4
)

// Instruction 一次要上链的动作 按 Op 取字段
type Instruction struct {
	Op            opCode
	Name          string // register
	Amount        int64  // deposit
	GameType      byte   // start
	Bet           int64  // start
	GameSessionID uint64 // start(提案号) / move
	MoveData      []byte // move 的不透明负载
}

func registerInstruction(name string) Instruction {
	return Instruction{Op: opRegister, Name: name}
}

func depositInstruction(amount int64) Instruction {
	return Instruction{Op: opDeposit, Amount: amount}
}

func startInstruction(gameType byte, bet int64, gameSessionID uint64) Instruction {
	return Instruction{Op: opStartGame, GameType: gameType, Bet: bet, GameSessionID: gameSessionID}
}

// moveInstruction 走子负载按 JSON 序列化后原样进指令 网关不理解内容
func moveInstruction(gameSessionID uint64, payload map[string]any) (Instruction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: opMove, GameSessionID: gameSessionID, MoveData: data}, nil
}

func encodeInstruction(ins Instruction) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ins.Op))

	switch ins.Op {
	case opRegister:
		name := []byte(ins.Name)
		if len(name) > 255 {
			name = name[:255]
		}
		buf.WriteByte(byte(len(name)))
		buf.Write(name)
	case opDeposit:
		_ = binary.Write(&buf, binary.BigEndian, ins.Amount)
	case opStartGame:
		buf.WriteByte(ins.GameType)
		_ = binary.Write(&buf, binary.BigEndian, ins.Bet)
		_ = binary.Write(&buf, binary.BigEndian, ins.GameSessionID)
	case opMove:
		_ = binary.Write(&buf, binary.BigEndian, ins.GameSessionID)
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(ins.MoveData)))
		buf.Write(ins.MoveData)
	}
	return buf.Bytes()
}

// buildTransaction 组帧并签名
func buildTransaction(kp *keys.Keypair, nonce uint64, ins Instruction) []byte {
	payload := encodeInstruction(ins)

	var buf bytes.Buffer
	buf.WriteByte(txVersion)
	buf.Write(kp.Public())
	_ = binary.Write(&buf, binary.BigEndian, nonce)
	buf.Write(payload)

	sig := kp.Sign(buf.Bytes())
	buf.Write(sig)
	return buf.Bytes()
}
