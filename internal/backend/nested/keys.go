package nested

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/dshills/waystorm/internal/input/key"
)

var keyCodes = map[ebiten.Key]key.Code{
	ebiten.KeyA: key.CodeA, ebiten.KeyB: key.CodeB, ebiten.KeyC: key.CodeC, ebiten.KeyD: key.CodeD,
	ebiten.KeyE: key.CodeE, ebiten.KeyF: key.CodeF, ebiten.KeyG: key.CodeG, ebiten.KeyH: key.CodeH,
	ebiten.KeyI: key.CodeI, ebiten.KeyJ: key.CodeJ, ebiten.KeyK: key.CodeK, ebiten.KeyL: key.CodeL,
	ebiten.KeyM: key.CodeM, ebiten.KeyN: key.CodeN, ebiten.KeyO: key.CodeO, ebiten.KeyP: key.CodeP,
	ebiten.KeyQ: key.CodeQ, ebiten.KeyR: key.CodeR, ebiten.KeyS: key.CodeS, ebiten.KeyT: key.CodeT,
	ebiten.KeyU: key.CodeU, ebiten.KeyV: key.CodeV, ebiten.KeyW: key.CodeW, ebiten.KeyX: key.CodeX,
	ebiten.KeyY: key.CodeY, ebiten.KeyZ: key.CodeZ,
	ebiten.KeyDigit0: key.Code0, ebiten.KeyDigit1: key.Code1, ebiten.KeyDigit2: key.Code2,
	ebiten.KeyDigit3: key.Code3, ebiten.KeyDigit4: key.Code4, ebiten.KeyDigit5: key.Code5,
	ebiten.KeyDigit6: key.Code6, ebiten.KeyDigit7: key.Code7, ebiten.KeyDigit8: key.Code8,
	ebiten.KeyDigit9: key.Code9,
	ebiten.KeyEnter: key.CodeEnter, ebiten.KeyTab: key.CodeTab, ebiten.KeySpace: key.CodeSpace,
	ebiten.KeyBackspace: key.CodeBackspace, ebiten.KeyEscape: key.CodeEsc,
	ebiten.KeyArrowLeft: key.CodeLeft, ebiten.KeyArrowRight: key.CodeRight,
	ebiten.KeyArrowDown: key.CodeDown, ebiten.KeyArrowUp: key.CodeUp,
	ebiten.KeyF1: key.CodeF1, ebiten.KeyF2: key.CodeF2, ebiten.KeyF3: key.CodeF3, ebiten.KeyF4: key.CodeF4,
	ebiten.KeyF5: key.CodeF5, ebiten.KeyF6: key.CodeF6, ebiten.KeyF7: key.CodeF7, ebiten.KeyF8: key.CodeF8,
	ebiten.KeyF9: key.CodeF9, ebiten.KeyF10: key.CodeF10, ebiten.KeyF11: key.CodeF11, ebiten.KeyF12: key.CodeF12,
	ebiten.KeyInsert: key.CodeInsert, ebiten.KeyDelete: key.CodeDelete,
	ebiten.KeyHome: key.CodeHome, ebiten.KeyEnd: key.CodeEnd,
	ebiten.KeyPageUp: key.CodePageUp, ebiten.KeyPageDown: key.CodePageDown,
	ebiten.KeyShiftLeft: key.CodeLeftShift, ebiten.KeyShiftRight: key.CodeRightShift,
	ebiten.KeyControlLeft: key.CodeLeftCtrl, ebiten.KeyControlRight: key.CodeRightCtrl,
	ebiten.KeyAltLeft: key.CodeLeftAlt, ebiten.KeyAltRight: key.CodeRightAlt,
	ebiten.KeyMetaLeft: key.CodeLeftMeta, ebiten.KeyMetaRight: key.CodeRightMeta,
}

// heldKeys returns the mapped keys that are down this tick.
func heldKeys() map[key.Code]bool {
	held := make(map[key.Code]bool)
	for k, code := range keyCodes {
		if ebiten.IsKeyPressed(k) {
			held[code] = true
		}
	}
	return held
}
