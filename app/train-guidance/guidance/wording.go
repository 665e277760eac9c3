package guidance

import (
	"fmt"
	"strings"
)

// announcement keys, suffixed with the station id or train number they concern
const (
	keyApproach      = "arr400_"
	keyArrival       = "arr200_"
	keyDoorApproach  = "door400_"
	keyDoorArrival   = "door200_"
	keyNextStop      = "next_"
	keyPass200       = "pass200_"
	keyPass120       = "pass120_"
	keyNonRevenue200 = "nonp200_"
	keyNonRevenue120 = "nonp120_"
	keyCaution       = "caution_"
	keyBoundary      = "boundary_"
	keyConfirmation  = "swapconfirm_"
	keySwap          = "swap_"
)

const (
	wordStop      = "停車"
	wordExtraStop = "臨時停車"
	wordPass      = "通過"
	wordExtraPass = "臨時通過"
)

func stopWord(extra bool) string {
	if extra {
		return wordExtraStop
	}
	return wordStop
}

func passWord(extra bool) string {
	if extra {
		return wordExtraPass
	}
	return wordPass
}

//carVariant is the stopping position part of an arrival, which depends on the train length and station markers
func carVariant(cars int, fullLength int, markerLabel string) string {
	switch {
	case markerLabel != "":
		return fmt.Sprintf("、%d両、%sあわせ", cars, markerLabel)
	case fullLength > 0 && cars == fullLength:
		return fmt.Sprintf("、%d両", cars)
	default:
		return fmt.Sprintf("、%d両、停止位置注意", cars)
	}
}

func platformPart(platform string) string {
	if platform == "" {
		return ""
	}
	return "、" + platform + "番線"
}

func approachText(stationName string, extraStop bool, cars int, platformChanged bool) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("まもなく%s、%s、%d両", stationName, stopWord(extraStop), cars))
	if platformChanged {
		b.WriteString("、着発線変更")
	}
	return b.String()
}

func arrivalText(extraStop bool, platform string, variant string) string {
	return stopWord(extraStop) + platformPart(platform) + variant
}

func nextStopText(stationName string, extraStop bool, platform string, markerLabel string) string {
	text := fmt.Sprintf("次は%s、%s", stationName, stopWord(extraStop)) + platformPart(platform)
	if markerLabel != "" {
		text += "、" + markerLabel + "あわせ"
	}
	return text
}

func nextExtraPassText(stationName string) string {
	return fmt.Sprintf("次は%s、%s", stationName, wordExtraPass)
}

func passText(trainType string, extraPass bool, caution bool) string {
	text := fmt.Sprintf("種別%s、%s", trainType, passWord(extraPass))
	if caution {
		text += "、速度注意"
	}
	return text
}

func nonRevenueText(subtype string, close bool) string {
	if close {
		return fmt.Sprintf("種別%s、ドアあつかい注意", subtype)
	}
	return fmt.Sprintf("種別%s、ていつう確認", subtype)
}

const (
	doorCautionText  = "ドアあつかい注意"
	sessionStartText = "案内を開始します"
)

func identityText(trainNumber, trainType, destination string) string {
	if trainNumber == "" {
		return fmt.Sprintf("種別%s、%s行き", trainType, destination)
	}
	return fmt.Sprintf("列番%s、種別%s、%s行き", trainNumber, trainType, destination)
}

func swapText(trainNumber, trainType, destination string) string {
	return identityText(trainNumber, trainType, destination) + "に変更"
}

func confirmationText(trainNumber, trainType, destination string) string {
	return identityText(trainNumber, trainType, destination) + "、確認"
}
