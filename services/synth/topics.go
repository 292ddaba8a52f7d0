package synth

import "clocksynth-go/bus"

func topicConfig() bus.Topic { return bus.T("config", "synth") }
func topicState() bus.Topic  { return bus.T("synth", "state") }
func topicStatus() bus.Topic { return bus.T("synth", "status") }

// synth/clk/<n>
func topicClock(n int) bus.Topic { return bus.T("synth", "clk", n) }

// synth/pll/<a|b>
func topicPLL(name string) bus.Topic { return bus.T("synth", "pll", name) }

// synth/ctl/<verb>
func topicCtrl(verb string) bus.Topic { return bus.T("synth", "ctl", verb) }

// synth/ctl/+
func ctrlWildcard() bus.Topic { return bus.T("synth", "ctl", "+") }

// Exported builders for clients and tests.

func CtrlTopic(verb string) bus.Topic { return topicCtrl(verb) }
func ClockTopic(n int) bus.Topic      { return topicClock(n) }
func PLLTopic(name string) bus.Topic  { return topicPLL(name) }
func StateTopic() bus.Topic           { return topicState() }
func StatusTopic() bus.Topic          { return topicStatus() }
func ConfigTopic() bus.Topic          { return topicConfig() }
