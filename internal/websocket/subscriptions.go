package websocket

// TopicIndex maintains the many-to-many relation between connections and
// topics. Each connection carries its own topic set and the index keeps the
// reverse member sets; both sides are always updated together.
//
// Like Registry, it belongs to the hub goroutine.
type TopicIndex struct {
	members         map[Topic]map[string]*Connection
	requireIdentity bool
}

func NewTopicIndex(requireIdentity bool) *TopicIndex {
	return &TopicIndex{
		members:         make(map[Topic]map[string]*Connection),
		requireIdentity: requireIdentity,
	}
}

// Subscribe adds conn to topic. It returns ErrNotRegistered when identity is
// required and conn has not registered one. Subscribing twice is a no-op.
func (ti *TopicIndex) Subscribe(conn *Connection, topic Topic) error {
	if ti.requireIdentity && !conn.Registered() {
		return ErrNotRegistered
	}
	if ti.members[topic] == nil {
		ti.members[topic] = make(map[string]*Connection)
	}
	ti.members[topic][conn.ID] = conn
	conn.topics[topic] = struct{}{}
	return nil
}

// Unsubscribe removes conn from topic and reports whether it was a member.
func (ti *TopicIndex) Unsubscribe(conn *Connection, topic Topic) bool {
	_, member := conn.topics[topic]
	delete(conn.topics, topic)

	set, ok := ti.members[topic]
	if !ok {
		return member
	}
	delete(set, conn.ID)
	if len(set) == 0 {
		delete(ti.members, topic)
	}
	return member
}

// MembersOf returns a copy of the topic's member set. Unknown topics yield an
// empty slice.
func (ti *TopicIndex) MembersOf(topic Topic) []*Connection {
	set := ti.members[topic]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Purge removes conn from every topic it joined and returns those topics.
func (ti *TopicIndex) Purge(conn *Connection) []Topic {
	topics := conn.Topics()
	for _, topic := range topics {
		ti.Unsubscribe(conn, topic)
	}
	return topics
}

// Counts returns the member count per live topic.
func (ti *TopicIndex) Counts() map[Topic]int {
	counts := make(map[Topic]int, len(ti.members))
	for topic, set := range ti.members {
		counts[topic] = len(set)
	}
	return counts
}

func (ti *TopicIndex) Len() int {
	return len(ti.members)
}
